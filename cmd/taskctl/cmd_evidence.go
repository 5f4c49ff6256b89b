package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/cliio"
	"github.com/taskctl/taskctl/internal/contextstore"
	"github.com/taskctl/taskctl/internal/procexec"
)

func newAttachEvidenceCmd() *cobra.Command {
	var attType, description string
	cmd := &cobra.Command{
		Use:     "attach-evidence <task-id> <path>",
		Short:   "Attach an evidence artifact to a task's context",
		GroupID: "context",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			t := contextstore.AttachmentType(attType)
			attachment, err := a.ctx.AttachEvidence(args[0], args[1], t, description, a.cfg.EvidenceSizeCeilingBytes, a.tarCompress(cmd))
			if err != nil {
				return err
			}
			return a.emit(attachment, func() {
				a.io.Println(a.io.StyleOK("attached"), attachment.ID, attachment.ArtifactPath)
			})
		},
	}
	cmd.Flags().StringVar(&attType, "type", "log", "log, diff, screenshot, report, archive, or other")
	cmd.Flags().StringVar(&description, "description", "", "human-readable description")
	return cmd
}

func newListEvidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list-evidence <task-id>",
		Short:   "List a task's attached evidence",
		GroupID: "context",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			items, err := a.ctx.ListEvidence(args[0])
			if err != nil {
				return err
			}
			return a.emit(items, func() {
				for _, e := range items {
					a.io.Printf("%s %-10s %s (%s)\n", e.ID, e.Type, e.ArtifactPath, cliio.HumanSize(e.SizeBytes))
				}
			})
		},
	}
	return cmd
}

func newAttachStandardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "attach-standard <task-id> <file> <heading>",
		Short:   "Extract and attach a standards document excerpt as provenance",
		GroupID: "context",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			citation, err := a.ctx.ExtractStandardsExcerpt(a.repoRoot, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return a.emit(citation, func() {
				a.io.Println(a.io.StyleOK("attached standard"), citation.File, citation.Section, citation.ExcerptID)
			})
		},
	}
	return cmd
}

// tarCompress builds the AttachEvidence compress callback. It shells out
// to tar through the process provider so directory-shaped artifacts and
// oversize files are archived the same way, with the configured timeout
// applied.
func (a *app) tarCompress(cmd *cobra.Command) func(src, dst string) error {
	provider := procexec.New(a.repoRoot)
	return func(src, dst string) error {
		stop := a.io.Progress("archiving evidence artifact")
		defer stop()
		_, err := provider.Run(cmd.Context(), a.cfg.ProcessTimeout, procexec.NoRetry,
			"tar", "-czf", dst, "-C", filepath.Dir(src), filepath.Base(src))
		return err
	}
}
