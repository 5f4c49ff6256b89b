package main

import (
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:     "graph",
		Short:   "Export the task dependency graph as Graphviz DOT",
		GroupID: "graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			g, warnings, err := a.loadGraph(refresh)
			if err != nil {
				return err
			}
			emitWarnings(a, warnings)
			dot := g.ExportDOT()

			return a.emit(map[string]string{"dot": dot}, func() {
				a.io.Println(dot)
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "force a cache refresh before exporting")
	return cmd
}
