package main

import (
	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/compliance"
)

func newExceptionCmd() *cobra.Command {
	group := &cobra.Command{
		Use:     "exception",
		Short:   "Manage the context-init exception ledger",
		GroupID: "compliance",
	}
	group.AddCommand(newAddExceptionCmd(), newResolveExceptionCmd(), newCleanupExceptionCmd(), newListExceptionsCmd())
	return group
}

func newAddExceptionCmd() *cobra.Command {
	var reason, createdBy string
	cmd := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Record a refused context initialization in the exception ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			id, err := a.compl.AddException(compliance.ExceptionEntry{TaskID: args[0], Reason: reason, CreatedBy: createdBy})
			if err != nil {
				return err
			}
			return a.emit(map[string]string{"id": id}, func() {
				a.io.Println(a.io.StyleOK("added exception"), id)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the initialization was refused")
	cmd.Flags().StringVar(&createdBy, "actor", "taskctl", "actor recorded as creator")
	return cmd
}

func newResolveExceptionCmd() *cobra.Command {
	var resolvedBy string
	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark an exception ledger entry resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			if err := a.compl.ResolveException(args[0], resolvedBy); err != nil {
				return err
			}
			return a.emit(map[string]string{"id": args[0], "resolved_by": resolvedBy}, func() {
				a.io.Println(a.io.StyleOK("resolved"), args[0])
			})
		},
	}
	cmd.Flags().StringVar(&resolvedBy, "actor", "taskctl", "actor recorded as resolver")
	return cmd
}

func newCleanupExceptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove every resolved entry from the exception ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			removed, err := a.compl.CleanupExceptions()
			if err != nil {
				return err
			}
			return a.emit(map[string]int{"removed": removed}, func() {
				a.io.Printf("removed %d resolved entr%s\n", removed, pluralY(removed))
			})
		},
	}
	return cmd
}

func newListExceptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every exception ledger entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			items, err := a.compl.ListExceptions()
			if err != nil {
				return err
			}
			return a.emit(items, func() {
				for _, e := range items {
					a.io.Printf("%s %-10s %s\n", e.ID, e.TaskID, e.Reason)
				}
			})
		},
	}
	return cmd
}

func newQuarantineCmd() *cobra.Command {
	group := &cobra.Command{
		Use:     "quarantine",
		Short:   "Manage quarantined tasks",
		GroupID: "compliance",
	}
	group.AddCommand(newQuarantineTaskCmd(), newReleaseQuarantineCmd(), newListQuarantinedCmd())
	return group
}

func newQuarantineTaskCmd() *cobra.Command {
	var reason, createdBy string
	cmd := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Quarantine a task, blocking it from being claimed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			err := a.compl.Quarantine(compliance.QuarantineEntry{TaskID: args[0], Reason: reason, CreatedBy: createdBy})
			if err != nil {
				return err
			}
			return a.emit(map[string]string{"task_id": args[0]}, func() {
				a.io.Println(a.io.StyleWarning("quarantined"), args[0])
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the task is quarantined")
	cmd.Flags().StringVar(&createdBy, "actor", "taskctl", "actor recorded as creator")
	return cmd
}

func newReleaseQuarantineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release <task-id>",
		Short: "Release a task from quarantine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			if err := a.compl.ReleaseQuarantine(args[0]); err != nil {
				return err
			}
			return a.emit(map[string]string{"task_id": args[0]}, func() {
				a.io.Println(a.io.StyleOK("released"), args[0])
			})
		},
	}
	return cmd
}

func newListQuarantinedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every currently quarantined task",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			items, err := a.compl.ListQuarantined()
			if err != nil {
				return err
			}
			return a.emit(items, func() {
				for _, e := range items {
					a.io.Printf("%-12s %s\n", e.TaskID, e.Reason)
				}
			})
		},
	}
	return cmd
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
