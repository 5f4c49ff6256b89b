package main

import (
	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/contextstore"
	"github.com/taskctl/taskctl/internal/taskerr"
)

func newUpdateAgentCmd() *cobra.Command {
	var role, status, sessionID, qaLogPath, completedAt, actor string
	var force bool
	cmd := &cobra.Command{
		Use:     "update-agent <task-id>",
		Short:   "Update one agent role's mutable coordination record",
		GroupID: "context",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			r := contextstore.AgentRole(role)
			if !r.IsValid() {
				return taskerr.Newf(taskerr.KindValidation, "--role must be one of implementer, reviewer, validator")
			}
			updates := map[string]any{}
			if status != "" {
				updates["status"] = status
			}
			if sessionID != "" {
				updates["session_id"] = sessionID
			}
			if qaLogPath != "" {
				updates["qa_log_path"] = qaLogPath
			}
			if completedAt != "" {
				updates["completed_at"] = completedAt
			}
			if len(updates) == 0 {
				return taskerr.New(taskerr.KindValidation, "no fields to update; pass at least one of --status/--session-id/--qa-log-path/--completed-at")
			}

			result, err := a.ctx.UpdateCoordination(args[0], r, updates, actor, force)
			if err != nil {
				return err
			}
			return a.emit(result, func() {
				a.io.Println(a.io.StyleOK("updated"), args[0], string(r))
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "implementer, reviewer, or validator")
	cmd.Flags().StringVar(&status, "status", "", "coordination status")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "agent session id")
	cmd.Flags().StringVar(&qaLogPath, "qa-log-path", "", "path to the role's QA log")
	cmd.Flags().StringVar(&completedAt, "completed-at", "", "RFC3339 completion timestamp")
	cmd.Flags().StringVar(&actor, "actor", "taskctl", "actor recorded in the audit trail")
	cmd.Flags().BoolVar(&force, "force-secrets", false, "allow updates containing secret-like strings")
	cmd.MarkFlagRequired("role")
	return cmd
}
