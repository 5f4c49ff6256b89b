package main

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/compliance"
	"github.com/taskctl/taskctl/internal/contextstore"
	"github.com/taskctl/taskctl/internal/taskerr"
)

// newContextCmd holds the narrower inspection subcommands (info, validate,
// migrate); init-context, get-context, purge-context, and rebuild-context
// are registered as their own top-level hyphenated commands in root.go.
func newContextCmd() *cobra.Command {
	group := &cobra.Command{
		Use:     "context",
		Short:   "Inspect a task's context manifest, freshness, and schema version",
		GroupID: "context",
	}
	group.AddCommand(newContextInfoCmd(), newContextValidateCmd(), newContextMigrateCmd())
	return group
}

func newContextMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <task-id>",
		Short: "Bring a task's context up to the current schema version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			result, err := a.ctx.Migrate(args[0])
			if err != nil {
				return taskerr.Wrap(taskerr.KindValidation, "migrate context", err)
			}
			return a.emit(result, func() {
				if result.Applied {
					a.io.Println(a.io.StyleOK("migrated"), args[0], result.FromSchema, "->", result.ToSchema)
				} else {
					a.io.Println(a.io.StyleMuted("already at current schema version"))
				}
			})
		},
	}
	return cmd
}

func newInitContextCmd() *cobra.Command {
	var createdBy string
	var force bool
	var standards []string
	cmd := &cobra.Command{
		Use:     "init-context <task-id>",
		Short:   "Initialize a task's immutable provenance context",
		GroupID: "context",
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
				return taskerr.Newf(taskerr.KindBlocker, "task %s is quarantined, refusing to initialize context", t.ID)
			}
			taskBytes, err := os.ReadFile(t.Path)
			if err != nil {
				return taskerr.Wrap(taskerr.KindIO, "read task file", err)
			}
			head, err := a.repo.HeadCommit(cmd.Context())
			if err != nil {
				return err
			}

			immutable := contextstore.Immutable{
				TaskSnapshot: contextstore.TaskSnapshot{
					Title:              t.Title,
					Priority:           string(t.Priority),
					Area:               t.Area,
					ScopeIn:            t.ScopeDoc.In,
					ScopeOut:           t.ScopeDoc.Out,
					AcceptanceCriteria: t.AcceptanceCrit,
					Plan:               t.Plan,
					Deliverables:       t.Deliverables,
				},
				ValidationBaseline: contextstore.ValidationBaseline{
					Commands: commandsFromBaseline(t.Validation.Commands),
				},
				RepoPaths: t.ContextDoc.RepoPaths,
			}

			sourceFiles := []contextstore.SourceFile{{Path: t.Path, SHA256: t.Hash, Purpose: contextstore.PurposeTaskYAML}}
			for _, ref := range standards {
				file, heading, ok := strings.Cut(ref, ":")
				if !ok {
					return taskerr.Newf(taskerr.KindValidation, "--standard must be <file>:<heading>, got %q", ref)
				}
				citation, err := a.ctx.ExtractStandardsExcerpt(a.repoRoot, t.ID, file, heading)
				if err != nil {
					return err
				}
				immutable.StandardsCitations = append(immutable.StandardsCitations, *citation)
				sha, err := fileSHA256(filepath.Join(a.repoRoot, file))
				if err != nil {
					return taskerr.Wrap(taskerr.KindIO, "hash standards file", err)
				}
				sourceFiles = append(sourceFiles, contextstore.SourceFile{Path: file, SHA256: sha, Purpose: contextstore.PurposeStandardsCitation})
			}

			result, err := a.ctx.InitContext(t.ID, contextstore.InitOptions{
				Immutable:     immutable,
				GitHead:       head,
				TaskFileSHA:   t.Hash,
				CreatedBy:     createdBy,
				ForceSecrets:  force,
				SourceFiles:   sourceFiles,
				TaskFileBytes: taskBytes,
			})
			if err != nil {
				if taskerr.Is(err, taskerr.KindValidation) {
					if _, ledgerErr := a.compl.AddException(compliance.ExceptionEntry{
						TaskID:    t.ID,
						Reason:    err.Error(),
						CreatedBy: createdBy,
					}); ledgerErr != nil {
						a.io.Warn("record exception ledger entry: %v", ledgerErr)
					}
				}
				return err
			}

			return a.emit(result, func() {
				a.io.Println(a.io.StyleOK("initialized context for"), t.ID)
			})
		},
	}
	cmd.Flags().StringVar(&createdBy, "actor", "taskctl", "actor recorded as creator")
	cmd.Flags().BoolVar(&force, "force-secrets", false, "allow provenance containing secret-like strings")
	cmd.Flags().StringArrayVar(&standards, "standard", nil, "standards citation as <file>:<heading>, repeatable")
	return cmd
}

func fileSHA256(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func commandsFromBaseline(commands []string) []contextstore.QACommand {
	out := make([]contextstore.QACommand, 0, len(commands))
	for i, c := range commands {
		out = append(out, contextstore.QACommand{ID: qaCommandID(i), Command: c})
	}
	return out
}

func newGetContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "get-context <task-id>",
		Short:   "Print a task's full context record",
		GroupID: "context",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			tc, warnings, err := a.ctx.GetContext(args[0])
			if err != nil {
				return err
			}
			for _, w := range warnings {
				a.io.Warn("%s", w)
			}
			return a.emit(tc, func() {
				a.io.Printf("%s created_by=%s git_head=%s\n", tc.TaskID, tc.CreatedBy, tc.GitHead)
			})
		},
	}
	return cmd
}

func newContextInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <task-id>",
		Short: "Show a task's context manifest and staleness state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			manifest, err := a.ctx.GetManifest(args[0])
			if err != nil {
				return err
			}
			return a.emit(manifest, func() {
				a.io.Printf("manifest schema %d, %d source file(s)\n", manifest.Version, len(manifest.SourceFiles))
				for _, sf := range manifest.SourceFiles {
					a.io.Println(" -", sf.Path, string(sf.Purpose))
				}
			})
		},
	}
	return cmd
}

func newContextValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <task-id>",
		Short: "Validate a task's context against the repository's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			_, warnings, err := a.ctx.GetContext(args[0])
			if err != nil {
				return err
			}
			return a.emit(map[string]any{"task_id": args[0], "warnings": warnings}, func() {
				if len(warnings) == 0 {
					a.io.Println(a.io.StyleOK("context is fresh"))
					return
				}
				for _, w := range warnings {
					a.io.Println(a.io.StyleWarning(w))
				}
			})
		},
	}
	return cmd
}

func newPurgeContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "purge-context <task-id>",
		Short:   "Delete a task's context directory",
		GroupID: "context",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFromContext(cmd.Context())
			if err := a.ctx.PurgeContext(args[0]); err != nil {
				return err
			}
			return a.emit(map[string]any{"task_id": args[0], "purged": true}, func() {
				a.io.Println(a.io.StyleOK("purged"), args[0])
			})
		},
	}
	return cmd
}

func newRebuildContextCmd() *cobra.Command {
	var createdBy string
	var force bool
	cmd := &cobra.Command{
		Use:     "rebuild-context <task-id>",
		Short:   "Purge and reinitialize a task's context after its source files changed",
		GroupID: "context",
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
			taskBytes, err := os.ReadFile(t.Path)
			if err != nil {
				return taskerr.Wrap(taskerr.KindIO, "read task file", err)
			}
			head, err := a.repo.HeadCommit(cmd.Context())
			if err != nil {
				return err
			}
			opts := contextstore.InitOptions{
				Immutable: contextstore.Immutable{
					TaskSnapshot: contextstore.TaskSnapshot{
						Title:              t.Title,
						Priority:           string(t.Priority),
						Area:               t.Area,
						ScopeIn:            t.ScopeDoc.In,
						ScopeOut:           t.ScopeDoc.Out,
						AcceptanceCriteria: t.AcceptanceCrit,
						Plan:               t.Plan,
						Deliverables:       t.Deliverables,
					},
					ValidationBaseline: contextstore.ValidationBaseline{Commands: commandsFromBaseline(t.Validation.Commands)},
					RepoPaths:          t.ContextDoc.RepoPaths,
				},
				GitHead:       head,
				TaskFileSHA:   t.Hash,
				CreatedBy:     createdBy,
				ForceSecrets:  force,
				SourceFiles:   []contextstore.SourceFile{{Path: t.Path, SHA256: t.Hash, Purpose: contextstore.PurposeTaskYAML}},
				TaskFileBytes: taskBytes,
			}
			result, err := a.ctx.RebuildContext(t.ID, opts, createdBy)
			if err != nil {
				return err
			}
			return a.emit(result, func() {
				a.io.Println(a.io.StyleOK("rebuilt context for"), t.ID)
			})
		},
	}
	cmd.Flags().StringVar(&createdBy, "actor", "taskctl", "actor recorded as rebuilder")
	cmd.Flags().BoolVar(&force, "force-secrets", false, "allow provenance containing secret-like strings")
	return cmd
}

func qaCommandID(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return "qa-" + string(letters[i])
	}
	return "qa-extra"
}
