package contextstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/taskctl/taskctl/internal/taskerr"
)

// GitDiffer is the minimal git surface worktree.go needs; satisfied by
// *vcsgit.Repo. Declared as an interface here so contextstore never
// imports vcsgit directly, keeping the dependency direction one-way.
type GitDiffer interface {
	DiffNameStatus(ctx context.Context, baseCommit string, scope []string) ([]FileChangeRef, error)
	UnifiedDiff(ctx context.Context, baseCommit string, scope []string) (string, error)
	ApplyDiffToTempIndex(ctx context.Context, baseCommit, diffContent string, scope []string) (string, error)
}

// FileChangeRef mirrors vcsgit.FileChange without the import, so GitDiffer
// stays self-contained.
type FileChangeRef struct {
	Path   string
	Status string
}

var globMetaRe = regexp.MustCompile(`[*?\[{]`)

// NormalizeRepoPaths turns a task's declared repo_paths into a sorted,
// deduplicated set of directory prefixes: a file path is replaced by its
// containing directory, and a glob keeps only the stable prefix up to its
// first meta-character.
func NormalizeRepoPaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		norm := normalizeOnePath(p)
		if norm == "" {
			continue
		}
		if !seen[norm] {
			seen[norm] = true
			out = append(out, norm)
		}
	}
	sort.Strings(out)
	return dedupPrefixes(out)
}

func normalizeOnePath(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if loc := globMetaRe.FindStringIndex(p); loc != nil {
		p = p[:loc[0]]
		p = strings.TrimRight(p, "/")
	}
	if filepath.Ext(p) != "" {
		p = filepath.ToSlash(filepath.Dir(p))
	}
	p = strings.TrimSuffix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// dedupPrefixes removes any entry that is itself nested under another
// entry already in the (sorted) list.
func dedupPrefixes(sorted []string) []string {
	var out []string
	for _, p := range sorted {
		covered := false
		for _, existing := range out {
			if p == existing || strings.HasPrefix(p, existing+"/") {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, p)
		}
	}
	return out
}

// ScopeHash returns the SHA-256 of the canonicalized, newline-joined
// repo_paths. Normalization happens first so hash order never depends on
// the caller's input order.
func ScopeHash(repoPaths []string) string {
	normalized := NormalizeRepoPaths(repoPaths)
	sum := sha256.Sum256([]byte(strings.Join(normalized, "\n")))
	return hex.EncodeToString(sum[:])
}

// normalizeDiffForHashing strips the noisy parts of a unified diff (index
// lines, trailing whitespace) before hashing, so a diff that is
// byte-identical in substance but regenerated with a different git
// version still hashes the same.
func normalizeDiffForHashing(diff string) string {
	var out []string
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "index ") {
			continue
		}
		out = append(out, strings.TrimRight(line, " \t\r"))
	}
	return strings.Join(out, "\n")
}

func diffSHA(diff string) string {
	sum := sha256.Sum256([]byte(normalizeDiffForHashing(diff)))
	return hex.EncodeToString(sum[:])
}

func diffStat(changes []FileChangeRef) string {
	var b strings.Builder
	for _, c := range changes {
		fmt.Fprintf(&b, "%s\t%s\n", c.Status, c.Path)
	}
	return b.String()
}

func fileChecksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "deleted", nil
		}
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// SnapshotWorktree records the working tree's state at an agent's
// hand-off. When role is reviewer and previousAgent is implementer and an
// implementer diff was already recorded, an incremental diff against that
// recorded diff is also computed; a failure to apply cleanly is recorded
// as an error field, not a fatal error.
func (s *Store) SnapshotWorktree(ctx context.Context, repoRoot, taskID string, role AgentRole, actor string, git GitDiffer, baseCommit string, previousAgent *AgentRole) (*WorktreeSnapshot, error) {
	tctx, err := s.readContextLocked(taskID)
	if err != nil {
		return nil, err
	}
	scope := tctx.Immutable.RepoPaths

	changes, err := git.DiffNameStatus(ctx, baseCommit, scope)
	if err != nil {
		return nil, err
	}
	diff, err := git.UnifiedDiff(ctx, baseCommit, scope)
	if err != nil {
		return nil, err
	}

	files := make([]FileChecksum, 0, len(changes))
	for _, c := range changes {
		sum, err := fileChecksum(filepath.Join(repoRoot, c.Path))
		if err != nil {
			return nil, taskerr.Wrap(taskerr.KindIO, "checksum changed file", err)
		}
		files = append(files, FileChecksum{Path: c.Path, Status: c.Status, SHA256: sum})
	}

	snap := &WorktreeSnapshot{
		BaseCommit: baseCommit,
		SnapshotAt: nowRFC3339(),
		DiffSHA256: diffSHA(diff),
		Files:      files,
		DiffStat:   diffStat(changes),
		ScopeHash:  ScopeHash(scope),
	}

	diffPath := filepath.Join(s.evidenceDir(taskID), string(role)+"-from-base.diff")
	if err := atomicWriteFile(diffPath, []byte(diff), 0644); err != nil {
		return nil, taskerr.Wrap(taskerr.KindIO, "write worktree diff", err)
	}
	snap.DiffPath = diffPath

	if role == RoleReviewer && previousAgent != nil && *previousAgent == RoleImplementer {
		implDiffPath := filepath.Join(s.evidenceDir(taskID), "implementer-from-base.diff")
		if implDiff, readErr := os.ReadFile(implDiffPath); readErr == nil {
			incremental, applyErr := git.ApplyDiffToTempIndex(ctx, baseCommit, string(implDiff), scope)
			if applyErr != nil {
				errMsg := applyErr.Error()
				snap.IncrementalDiffError = &errMsg
			} else {
				incPath := filepath.Join(s.evidenceDir(taskID), "reviewer-incremental.diff")
				if err := atomicWriteFile(incPath, []byte(incremental), 0644); err == nil {
					sha := diffSHA(incremental)
					snap.DiffFromImplementer = &incPath
					snap.IncrementalDiffSHA = &sha
				}
			}
		}
	}

	updates := map[string]any{"worktree_snapshot": snap}
	if _, err := s.UpdateCoordination(taskID, role, updates, actor, true); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) readContextLocked(taskID string) (*TaskContext, error) {
	var ctx *TaskContext
	err := s.withLock(func() error {
		c, err := s.readContext(taskID)
		if err != nil {
			return err
		}
		ctx = c
		return nil
	})
	return ctx, err
}

// DriftReport is returned by VerifyWorktreeState when the recorded
// snapshot no longer matches the working tree.
type DriftReport struct {
	ScopeMismatch bool
	DiffMismatch  bool
	ChangedFiles  []string
}

func (d *DriftReport) hasDrift() bool {
	return d.ScopeMismatch || d.DiffMismatch || len(d.ChangedFiles) > 0
}

// VerifyWorktreeState recomputes the scope hash, the diff against base,
// and per-file checksums, comparing each against the snapshot recorded by
// expectedRole. Any mismatch is drift; absence of a snapshot is a
// context-not-found error.
func (s *Store) VerifyWorktreeState(ctx context.Context, repoRoot, taskID string, expectedRole AgentRole, git GitDiffer) (*DriftReport, error) {
	tctx, err := s.readContextLocked(taskID)
	if err != nil {
		return nil, err
	}
	coord := tctx.Coordination(expectedRole)
	if coord == nil || coord.WorktreeSnapshot == nil {
		return nil, taskerr.Newf(taskerr.KindDrift, "no worktree snapshot recorded for role %s; agent must call snapshot_worktree() before handoff", expectedRole)
	}
	snap := coord.WorktreeSnapshot
	scope := tctx.Immutable.RepoPaths

	report := &DriftReport{}
	if ScopeHash(scope) != snap.ScopeHash {
		report.ScopeMismatch = true
	}

	diff, err := git.UnifiedDiff(ctx, snap.BaseCommit, scope)
	if err != nil {
		return nil, err
	}
	if diffSHA(diff) != snap.DiffSHA256 {
		report.DiffMismatch = true
	}

	for _, f := range snap.Files {
		sum, err := fileChecksum(filepath.Join(repoRoot, f.Path))
		if err != nil {
			return nil, taskerr.Wrap(taskerr.KindIO, "checksum file during verification", err)
		}
		if sum != f.SHA256 {
			report.ChangedFiles = append(report.ChangedFiles, f.Path)
		}
	}

	if report.hasDrift() {
		return report, taskerr.Newf(taskerr.KindDrift, "worktree state for role %s has drifted from its recorded snapshot", expectedRole).
			WithDetails(map[string]any{"changed_files": report.ChangedFiles, "scope_mismatch": report.ScopeMismatch, "diff_mismatch": report.DiffMismatch})
	}
	return report, nil
}
