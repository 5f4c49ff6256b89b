package main

import (
	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/picker"
)

func newListCmd() *cobra.Command {
	var statusFlag string
	var unblockerOnly bool
	var refresh bool

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List tasks in picker priority order",
		GroupID: "graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			g, warnings, err := a.loadGraph(refresh)
			if err != nil {
				return err
			}
			emitWarnings(a, warnings)

			status, err := statusPtr(statusFlag)
			if err != nil {
				return err
			}
			tasks := picker.List(g, picker.ListOptions{StatusFilter: status, UnblockerOnly: unblockerOnly})

			return a.emit(tasks, func() {
				for _, t := range tasks {
					a.io.Println(taskSummaryLine(a, t))
				}
			})
		},
	}
	cmd.Flags().StringVar(&statusFlag, "status", "", "filter by status")
	cmd.Flags().BoolVar(&unblockerOnly, "unblocker-only", false, "only show unblocker tasks")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "force a cache refresh before listing")
	return cmd
}
