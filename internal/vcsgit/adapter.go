package vcsgit

import (
	"context"

	"github.com/taskctl/taskctl/internal/contextstore"
)

// Adapter satisfies contextstore.GitDiffer by translating vcsgit's own
// FileChange type into contextstore.FileChangeRef, keeping contextstore
// free of a direct import on this package.
type Adapter struct {
	Repo *Repo
}

// NewAdapter wraps repo for use as a contextstore.GitDiffer.
func NewAdapter(repo *Repo) *Adapter { return &Adapter{Repo: repo} }

func (a *Adapter) DiffNameStatus(ctx context.Context, baseCommit string, scope []string) ([]contextstore.FileChangeRef, error) {
	changes, err := a.Repo.DiffNameStatus(ctx, baseCommit, scope)
	if err != nil {
		return nil, err
	}
	out := make([]contextstore.FileChangeRef, len(changes))
	for i, c := range changes {
		out[i] = contextstore.FileChangeRef{Path: c.Path, Status: c.Status}
	}
	return out, nil
}

func (a *Adapter) UnifiedDiff(ctx context.Context, baseCommit string, scope []string) (string, error) {
	return a.Repo.UnifiedDiff(ctx, baseCommit, scope)
}

func (a *Adapter) ApplyDiffToTempIndex(ctx context.Context, baseCommit, diffContent string, scope []string) (string, error) {
	return a.Repo.ApplyDiffToTempIndex(ctx, baseCommit, diffContent, scope)
}
