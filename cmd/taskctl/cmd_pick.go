package main

import (
	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/picker"
)

func newPickCmd() *cobra.Command {
	var statusFlag string
	var refresh bool
	cmd := &cobra.Command{
		Use:     "pick",
		Short:   "Pick the next task to work, in priority order",
		GroupID: "graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			g, warnings, err := a.loadGraph(refresh)
			if err != nil {
				return err
			}
			emitWarnings(a, warnings)

			if he := picker.CheckHaltConditions(g.Tasks()); he != nil {
				return he.ToTaskErr()
			}

			status, err := statusPtr(statusFlag)
			if err != nil {
				return err
			}
			completed := completedSet(g.Tasks())
			result, err := picker.PickNext(g, completed, status)
			if err != nil {
				return err
			}
			info, err := a.cache.GetCacheInfo()
			if err != nil {
				return err
			}

			if result == nil {
				return a.emit(map[string]any{"picked": false, "snapshot_id": info.GeneratedAt}, func() {
					a.io.Println(a.io.StyleMuted("no ready task"))
				})
			}

			return a.emit(map[string]any{
				"picked":      true,
				"task":        result.Task,
				"reason":      result.Reason,
				"snapshot_id": info.GeneratedAt,
			}, func() {
				a.io.Println(taskSummaryLine(a, result.Task))
				a.io.Println(a.io.StyleMuted(result.Reason))
			})
		},
	}
	cmd.Flags().StringVar(&statusFlag, "status", "", "restrict to this status")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "force a cache refresh before picking")
	return cmd
}
