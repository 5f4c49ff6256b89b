package main

import (
	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/contextstore"
	"github.com/taskctl/taskctl/internal/taskerr"
	"github.com/taskctl/taskctl/internal/vcsgit"
)

func newSnapshotWorktreeCmd() *cobra.Command {
	var role, actor, baseCommit, previousAgent string
	cmd := &cobra.Command{
		Use:     "snapshot-worktree <task-id>",
		Short:   "Snapshot the current worktree's diff against a base commit into a role's coordination record",
		GroupID: "context",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			r := contextstore.AgentRole(role)
			if !r.IsValid() {
				return taskerr.Newf(taskerr.KindValidation, "--role must be one of implementer, reviewer, validator")
			}
			base := baseCommit
			if base == "" {
				head, err := a.repo.HeadCommit(cmd.Context())
				if err != nil {
					return err
				}
				base = head
			}
			var prev *contextstore.AgentRole
			if previousAgent != "" {
				pr := contextstore.AgentRole(previousAgent)
				if !pr.IsValid() {
					return taskerr.Newf(taskerr.KindValidation, "--previous-agent must be one of implementer, reviewer, validator")
				}
				prev = &pr
			}

			adapter := vcsgit.NewAdapter(a.repo)
			stop := a.io.Progress("capturing worktree diff")
			snap, err := a.ctx.SnapshotWorktree(cmd.Context(), a.repoRoot, args[0], r, actor, adapter, base, prev)
			stop()
			if err != nil {
				return err
			}
			return a.emit(snap, func() {
				a.io.Printf("snapshot: %d file(s) changed, scope_hash=%s\n", len(snap.Files), snap.ScopeHash)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "implementer, reviewer, or validator")
	cmd.Flags().StringVar(&actor, "actor", "taskctl", "actor recorded in the audit trail")
	cmd.Flags().StringVar(&baseCommit, "base-commit", "", "base commit to diff against (default: current HEAD)")
	cmd.Flags().StringVar(&previousAgent, "previous-agent", "", "role whose diff this snapshot should be diffed against incrementally")
	cmd.MarkFlagRequired("role")
	return cmd
}

func newVerifyWorktreeCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:     "verify-worktree <task-id>",
		Short:   "Verify the current worktree matches a role's recorded snapshot",
		GroupID: "context",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			r := contextstore.AgentRole(role)
			if !r.IsValid() {
				return taskerr.Newf(taskerr.KindValidation, "--role must be one of implementer, reviewer, validator")
			}
			adapter := vcsgit.NewAdapter(a.repo)
			report, err := a.ctx.VerifyWorktreeState(cmd.Context(), a.repoRoot, args[0], r, adapter)
			if err != nil {
				return err
			}
			return a.emit(report, func() {
				a.io.Println(a.io.StyleOK("worktree matches recorded snapshot"))
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "implementer, reviewer, or validator")
	cmd.MarkFlagRequired("role")
	return cmd
}
