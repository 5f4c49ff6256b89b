package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type explainReport struct {
	TaskID     string   `json:"task_id"`
	Ready      bool     `json:"ready"`
	Blockers   []string `json:"blockers,omitempty"`
	Blocking   []string `json:"blocking,omitempty"`
	Artifacts  []string `json:"artifacts,omitempty"`
	Transitive []string `json:"transitive,omitempty"`
}

func newExplainCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:     "explain <task-id>",
		Short:   "Explain why a task is or is not ready to pick",
		GroupID: "graph",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			g, warnings, err := a.loadGraph(refresh)
			if err != nil {
				return err
			}
			emitWarnings(a, warnings)

			t, err := resolveTask(g, args[0])
			if err != nil {
				return err
			}
			completed := completedSet(g.Tasks())
			closure := g.ComputeDependencyClosure(t.ID)
			transitivelyBlocked := g.FindTransitivelyBlocked(t.ID)

			report := explainReport{
				TaskID:     t.ID,
				Ready:      t.IsReady(completed),
				Blockers:   g.Blockers(t.ID),
				Blocking:   transitivelyBlocked,
				Artifacts:  closure.Artifacts,
				Transitive: closure.Transitive,
			}

			return a.emit(report, func() {
				a.io.Printf("%s: %s\n", t.ID, t.Title)
				if report.Ready {
					a.io.Println(a.io.StyleOK("ready to pick"))
				} else {
					a.io.Println(a.io.StyleWarning("not ready"))
				}
				if len(report.Blockers) > 0 {
					a.io.Println("blocked by:", report.Blockers)
				}
				if len(report.Blocking) > 0 {
					a.io.Println(fmt.Sprintf("transitively blocks %d task(s): %v", len(report.Blocking), report.Blocking))
				}
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "force a cache refresh before explaining")
	return cmd
}
