package main

import (
	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/task"
	"github.com/taskctl/taskctl/internal/taskerr"
)

func newClaimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "claim <task-id>",
		Short:   "Claim a ready task: sets its status to in_progress",
		GroupID: "graph",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			g, warnings, err := a.loadGraph(false)
			if err != nil {
				return err
			}
			emitWarnings(a, warnings)

			t, err := resolveTask(g, args[0])
			if err != nil {
				return err
			}
			quarantined, err := a.compl.IsQuarantined(t.ID)
			if err != nil {
				return err
			}
			if quarantined {
				return taskerr.Newf(taskerr.KindBlocker, "task %s is quarantined", t.ID)
			}
			if !t.IsReady(completedSet(g.Tasks())) {
				return taskerr.Newf(taskerr.KindBlocker, "task %s is not ready: blocked by %v", t.ID, g.Blockers(t.ID))
			}
			if t.Status != task.StatusTodo && t.Status != task.StatusDraft {
				return taskerr.Newf(taskerr.KindValidation, "task %s has status %q, cannot claim", t.ID, t.Status)
			}

			if err := task.SetStatus(t.Path, task.StatusInProgress); err != nil {
				return taskerr.Wrap(taskerr.KindIO, "claim task", err)
			}
			a.logger.Printf("claimed %s", t.ID)

			return a.emit(map[string]any{"task_id": t.ID, "status": task.StatusInProgress}, func() {
				a.io.Println(a.io.StyleOK("claimed"), t.ID)
			})
		},
	}
	return cmd
}

func newCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "complete <task-id>",
		Short:   "Mark a task completed",
		GroupID: "graph",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			g, warnings, err := a.loadGraph(false)
			if err != nil {
				return err
			}
			emitWarnings(a, warnings)

			t, err := resolveTask(g, args[0])
			if err != nil {
				return err
			}
			if t.Status != task.StatusInProgress {
				return taskerr.Newf(taskerr.KindValidation, "task %s has status %q, expected in_progress", t.ID, t.Status)
			}
			if err := task.SetStatus(t.Path, task.StatusCompleted); err != nil {
				return taskerr.Wrap(taskerr.KindIO, "complete task", err)
			}
			a.logger.Printf("completed %s", t.ID)

			return a.emit(map[string]any{"task_id": t.ID, "status": task.StatusCompleted}, func() {
				a.io.Println(a.io.StyleOK("completed"), t.ID)
			})
		},
	}
	return cmd
}

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "archive <task-id>",
		Short:   "Move a completed task's file into docs/completed-tasks",
		GroupID: "graph",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			g, warnings, err := a.loadGraph(false)
			if err != nil {
				return err
			}
			emitWarnings(a, warnings)

			t, err := resolveTask(g, args[0])
			if err != nil {
				return err
			}
			if t.Status != task.StatusCompleted {
				return taskerr.Newf(taskerr.KindValidation, "task %s has status %q, expected completed before archiving", t.ID, t.Status)
			}
			dest, err := task.Archive(a.repoRoot, t.Path)
			if err != nil {
				return taskerr.Wrap(taskerr.KindIO, "archive task", err)
			}
			a.logger.Printf("archived %s -> %s", t.ID, dest)

			return a.emit(map[string]any{"task_id": t.ID, "path": dest}, func() {
				a.io.Println(a.io.StyleOK("archived"), t.ID, "->", dest)
			})
		},
	}
	return cmd
}

func newRefreshCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "refresh-cache",
		Short:   "Force a rescan of tasks/ and docs/completed-tasks, rebuilding the cache and query index",
		GroupID: "graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			stop := a.io.Progress("rescanning task files")
			g, warnings, err := a.loadGraph(true)
			stop()
			if err != nil {
				return err
			}
			emitWarnings(a, warnings)

			rebuilt := false
			if a.cfg.QueryCacheEnabled {
				db, err := a.openQueryCache()
				if err != nil {
					return taskerr.Wrap(taskerr.KindIO, "open query cache", err)
				}
				defer db.Close()
				if err := db.InitSchema(cmd.Context()); err != nil {
					return taskerr.Wrap(taskerr.KindIO, "init query cache schema", err)
				}
				if err := db.Rebuild(cmd.Context(), g.Tasks()); err != nil {
					return taskerr.Wrap(taskerr.KindIO, "rebuild query cache", err)
				}
				rebuilt = true
			}

			info, err := a.cache.GetCacheInfo()
			if err != nil {
				return taskerr.Wrap(taskerr.KindIO, "read cache info", err)
			}

			return a.emit(map[string]any{"cache": info, "query_cache_rebuilt": rebuilt}, func() {
				a.io.Printf("refreshed: %d task(s), %d archived, generated %s\n", info.TaskCount, info.ArchiveCount, info.GeneratedAt)
				if rebuilt {
					a.io.Println(a.io.StyleMuted("query cache rebuilt"))
				}
			})
		},
	}
	return cmd
}
