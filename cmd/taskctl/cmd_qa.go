package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/contextstore"
)

func newRecordQACmd() *cobra.Command {
	var command, logPath, actor, commandType string
	var exitCode int
	var durationMs int64
	cmd := &cobra.Command{
		Use:     "record-qa <task-id>",
		Short:   "Record the outcome of one declared QA command against a task's baseline",
		GroupID: "context",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			head, err := a.repo.HeadCommit(cmd.Context())
			if err != nil {
				return err
			}
			var durationPtr *int64
			if cmd.Flags().Changed("duration-ms") {
				durationPtr = &durationMs
			}

			if _, statErr := os.Stat(logPath); statErr == nil {
				desc := fmt.Sprintf("QA log for %q", command)
				if _, attachErr := a.ctx.AttachEvidence(args[0], logPath, contextstore.AttachmentLog, desc, a.cfg.EvidenceSizeCeilingBytes, a.tarCompress(cmd)); attachErr != nil {
					a.io.Warn("attach QA log as evidence: %v", attachErr)
				}
			}

			result, err := a.ctx.RecordQA(args[0], command, exitCode, logPath, actor, head, durationPtr, commandType)
			if err != nil {
				return err
			}

			return a.emit(result, func() {
				if result.ExitCode != 0 {
					a.io.Println(a.io.StyleWarning("recorded failing QA command:"), result.Command)
					return
				}
				a.io.Println(a.io.StyleOK("recorded"), result.Command)
			})
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "the command string as declared in the task's validation baseline")
	cmd.Flags().StringVar(&logPath, "log-path", "", "path to the command's captured log")
	cmd.Flags().IntVar(&exitCode, "exit-code", 0, "the command's exit code")
	cmd.Flags().StringVar(&actor, "actor", "taskctl", "actor recorded as having run the command")
	cmd.Flags().StringVar(&commandType, "command-type", "test", "lint, typecheck, test, or coverage, selects the log parser")
	cmd.Flags().Int64Var(&durationMs, "duration-ms", 0, "command wall-clock duration in milliseconds")
	cmd.MarkFlagRequired("command")
	cmd.MarkFlagRequired("log-path")
	return cmd
}
