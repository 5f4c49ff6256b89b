// Package vcsgit provides the git-only read-and-diff surface the context
// store needs for worktree snapshotting: HEAD resolution, scoped diffs
// against a base commit, and temporary-index staging for untracked files
// and reverse-applied incremental diffs. Workspace, remote, and push
// management have no caller here and are deliberately not implemented.
package vcsgit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/taskctl/taskctl/internal/procexec"
	"github.com/taskctl/taskctl/internal/taskerr"
)

// Repo is a thin handle on a git repository rooted at Dir.
type Repo struct {
	Dir      string
	provider *procexec.Provider
}

// Open returns a Repo rooted at dir. It does not verify dir is a git
// repository; the first git call will fail with taskerr.KindGit if not.
func Open(dir string) *Repo {
	return &Repo{Dir: dir, provider: procexec.New(dir)}
}

// HeadCommit returns the current HEAD commit SHA.
func (r *Repo) HeadCommit(ctx context.Context) (string, error) {
	res, err := r.provider.RunGit(ctx, true, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// FileChange is one entry in a diff: path plus a single-letter status
// (A/M/D/R) matching git's --name-status output.
type FileChange struct {
	Path   string
	Status string
}

// DiffNameStatus lists files changed relative to baseCommit, restricted to
// the given repo-relative path prefixes (empty scope means unrestricted).
func (r *Repo) DiffNameStatus(ctx context.Context, baseCommit string, scope []string) ([]FileChange, error) {
	args := []string{"diff", "--name-status", baseCommit}
	if len(scope) > 0 {
		args = append(args, "--")
		args = append(args, scope...)
	}
	res, err := r.provider.RunGit(ctx, true, args...)
	if err != nil {
		return nil, err
	}
	var changes []FileChange
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		changes = append(changes, FileChange{Status: parts[0], Path: parts[1]})
	}
	return changes, nil
}

// UnifiedDiff returns the full unified diff against baseCommit, restricted
// to scope. Untracked files within scope are staged into a temporary
// index first (via withTempIndex) so they appear in the diff as additions
// without ever touching the repository's real index.
func (r *Repo) UnifiedDiff(ctx context.Context, baseCommit string, scope []string) (string, error) {
	var diff string
	err := r.withTempIndex(ctx, baseCommit, func(indexPath string) error {
		if err := r.addIntentToAdd(ctx, indexPath, scope); err != nil {
			return err
		}
		args := []string{"diff", baseCommit}
		if len(scope) > 0 {
			args = append(args, "--")
			args = append(args, scope...)
		}
		res, err := r.runWithIndex(ctx, indexPath, args...)
		if err != nil {
			return err
		}
		diff = res.Stdout
		return nil
	})
	return diff, err
}

// withTempIndex creates a short-lived git index seeded from treeish,
// invokes fn with its path, and always removes it afterward. The
// repository's real index (and working tree) is never written to.
func (r *Repo) withTempIndex(ctx context.Context, treeish string, fn func(indexPath string) error) error {
	tmp, err := os.CreateTemp("", "taskctl-index-*")
	if err != nil {
		return taskerr.Wrap(taskerr.KindIO, "create temporary git index", err)
	}
	indexPath := tmp.Name()
	tmp.Close()
	defer os.Remove(indexPath)

	if _, err := r.runWithIndex(ctx, indexPath, "read-tree", treeish); err != nil {
		return err
	}
	return fn(indexPath)
}

func (r *Repo) runWithIndex(ctx context.Context, indexPath string, args ...string) (*procexec.Result, error) {
	return r.provider.RunGitWithEnv(ctx, false, []string{"GIT_INDEX_FILE=" + indexPath}, args...)
}

func (r *Repo) addIntentToAdd(ctx context.Context, indexPath string, scope []string) error {
	untracked, err := r.untrackedFiles(ctx, scope)
	if err != nil {
		return err
	}
	if len(untracked) == 0 {
		return nil
	}
	args := append([]string{"add", "--intent-to-add", "--"}, untracked...)
	_, err = r.runWithIndex(ctx, indexPath, args...)
	return err
}

func (r *Repo) untrackedFiles(ctx context.Context, scope []string) ([]string, error) {
	args := []string{"ls-files", "--others", "--exclude-standard"}
	if len(scope) > 0 {
		args = append(args, "--")
		args = append(args, scope...)
	}
	res, err := r.provider.RunGit(ctx, true, args...)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// ApplyDiffToTempIndex reverse-stages diffContent (a previously saved
// unified diff) into a fresh temporary index rooted at baseCommit, then
// diffs the real working tree against that index. This is how a reviewer's
// incremental diff against the implementer's changes is computed without
// touching the shared repository index. Returns a distinct error when the
// diff fails to apply cleanly (conflicts), rather than aborting the
// caller's whole operation.
func (r *Repo) ApplyDiffToTempIndex(ctx context.Context, baseCommit, diffContent string, scope []string) (string, error) {
	patchFile, err := os.CreateTemp("", "taskctl-patch-*.diff")
	if err != nil {
		return "", taskerr.Wrap(taskerr.KindIO, "create temp patch file", err)
	}
	defer os.Remove(patchFile.Name())
	if _, err := patchFile.WriteString(diffContent); err != nil {
		patchFile.Close()
		return "", taskerr.Wrap(taskerr.KindIO, "write temp patch file", err)
	}
	patchFile.Close()

	var result string
	err = r.withTempIndex(ctx, baseCommit, func(indexPath string) error {
		if _, err := r.runWithIndex(ctx, indexPath, "apply", "--cached", patchFile.Name()); err != nil {
			return taskerr.Wrap(taskerr.KindDrift, "implementer diff did not apply cleanly to base commit", err)
		}
		args := []string{"diff"}
		if len(scope) > 0 {
			args = append(args, "--")
			args = append(args, scope...)
		}
		res, err := r.runWithIndex(ctx, indexPath, args...)
		if err != nil {
			return err
		}
		result = res.Stdout
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

// ReflogOperations returns up to limit recent reflog entries, used by
// diagnostics to show what moved HEAD around a snapshot.
func (r *Repo) ReflogOperations(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	res, err := r.provider.RunGit(ctx, true, "reflog", "-n", fmt.Sprintf("%d", limit), "--format=%H %gs")
	if err != nil {
		return nil, err
	}
	var ops []string
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if line != "" {
			ops = append(ops, line)
		}
	}
	return ops, nil
}

// RepoRoot returns the top-level directory of the repository containing
// dir, resolving via git rev-parse.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	p := procexec.New(dir)
	res, err := p.RunGit(ctx, true, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return filepath.Clean(strings.TrimSpace(res.Stdout)), nil
}
