package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/taskctl/taskctl/internal/cache"
	"github.com/taskctl/taskctl/internal/cliio"
	"github.com/taskctl/taskctl/internal/compliance"
	"github.com/taskctl/taskctl/internal/config"
	"github.com/taskctl/taskctl/internal/contextstore"
	"github.com/taskctl/taskctl/internal/querycache"
	"github.com/taskctl/taskctl/internal/taskerr"
	"github.com/taskctl/taskctl/internal/vcsgit"
)

// app bundles every dependency a command needs, built once in
// PersistentPreRunE and threaded through via the cobra command's context.
type app struct {
	repoRoot string
	cfg      config.Config
	io       *cliio.Channel
	cache    *cache.Store
	ctx      *contextstore.Store
	compl    *compliance.Store
	repo     *vcsgit.Repo
	logger   *log.Logger
}

type appKey struct{}

func appFromContext(ctx context.Context) *app {
	return ctx.Value(appKey{}).(*app)
}

var (
	flagRepo   string
	flagFormat string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Drive the repository's task graph, cache, and agent context store",
		Long:          "taskctl reads the repository's *.task.yaml files, maintains a persistent cache and secondary query index, and coordinates hand-off between implementer, reviewer, and validator agents via a per-task context store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flagRepo, "repo", "", "repository root (default: discovered from cwd via git)")
	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: text or json")

	root.AddGroup(
		&cobra.Group{ID: "graph", Title: "Task graph commands:"},
		&cobra.Group{ID: "context", Title: "Agent context store commands:"},
		&cobra.Group{ID: "compliance", Title: "Compliance commands:"},
	)

	root.AddCommand(
		newListCmd(),
		newValidateCmd(),
		newCheckHaltCmd(),
		newGraphCmd(),
		newExplainCmd(),
		newPickCmd(),
		newClaimCmd(),
		newCompleteCmd(),
		newArchiveCmd(),
		newRefreshCacheCmd(),
		newContextCmd(),
		newInitContextCmd(),
		newGetContextCmd(),
		newPurgeContextCmd(),
		newRebuildContextCmd(),
		newUpdateAgentCmd(),
		newSnapshotWorktreeCmd(),
		newVerifyWorktreeCmd(),
		newAttachEvidenceCmd(),
		newAttachStandardCmd(),
		newListEvidenceCmd(),
		newRecordQACmd(),
		newExceptionCmd(),
		newQuarantineCmd(),
	)
	return root
}

func buildApp(ctx context.Context) (*app, error) {
	repoRoot := flagRepo
	if repoRoot == "" {
		discovered, err := vcsgit.RepoRoot(ctx, ".")
		if err != nil {
			repoRoot = "."
		} else {
			repoRoot = discovered
		}
	}
	repoRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindIO, "resolve repo root", err)
	}

	format := cliio.FormatText
	if flagFormat == "json" {
		format = cliio.FormatJSON
	} else if flagFormat != "text" {
		return nil, taskerr.Newf(taskerr.KindValidation, "unknown --format %q, want text or json", flagFormat)
	}

	cfg, err := config.Load(repoRoot)
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindIO, "load .taskctl.toml", err)
	}

	channel := cliio.New(format, cfg.Color)

	logDir := filepath.Join(repoRoot, ".agent-output")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, taskerr.Wrap(taskerr.KindIO, "create .agent-output", err)
	}
	logger := log.New(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, "taskctl.log"),
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     28,
	}, "", log.LstdFlags|log.Lmicroseconds)

	repo := vcsgit.Open(repoRoot)
	gitHeadFn := func() (string, error) {
		return repo.HeadCommit(context.Background())
	}

	return &app{
		repoRoot: repoRoot,
		cfg:      cfg,
		io:       channel,
		cache:    cache.New(repoRoot),
		ctx:      contextstore.New(repoRoot, gitHeadFn),
		compl:    compliance.New(repoRoot),
		repo:     repo,
		logger:   logger,
	}, nil
}

// openQueryCache opens the secondary query index at its default path under
// the repo's cache directory. Callers that need a fresh index call Rebuild
// afterward; it is opened lazily, not in buildApp, since single-task
// commands (e.g. get-context) never touch it.
func (a *app) openQueryCache() (*querycache.DB, error) {
	path := filepath.Join(a.repoRoot, querycache.DefaultPath)
	return querycache.Open(path, a.logger)
}
