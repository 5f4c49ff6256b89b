package contextstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/taskctl/taskctl/internal/taskerr"
)

const storeLockTimeout = 10 * time.Second

const staleAfter = 48 * time.Hour

// Store mediates every context directory under <repoRoot>/.agent-output.
// All mutating methods acquire the same store-wide lock, so parallel
// invocations targeting different tasks still serialize their writes.
type Store struct {
	repoRoot string
	rootDir  string
	lockPath string

	// gitHead, when set, overrides the current HEAD lookup (used by
	// tests and by callers that already resolved it).
	gitHeadFn func() (string, error)
}

// New constructs a Store rooted at repoRoot's .agent-output directory.
func New(repoRoot string, gitHeadFn func() (string, error)) *Store {
	return &Store{
		repoRoot:  repoRoot,
		rootDir:   filepath.Join(repoRoot, ".agent-output"),
		lockPath:  filepath.Join(repoRoot, ".agent-output", ".context_store.lock"),
		gitHeadFn: gitHeadFn,
	}
}

func (s *Store) taskDir(taskID string) string {
	return filepath.Join(s.rootDir, taskID)
}

func (s *Store) contextPath(taskID string) string {
	return filepath.Join(s.taskDir(taskID), "context.json")
}

func (s *Store) manifestPath(taskID string) string {
	return filepath.Join(s.taskDir(taskID), "context.manifest")
}

func (s *Store) snapshotPath(taskID string) string {
	return filepath.Join(s.taskDir(taskID), "task-snapshot.yaml")
}

func (s *Store) evidenceDir(taskID string) string {
	return filepath.Join(s.taskDir(taskID), "evidence")
}

// repoRelative converts an absolute path under the repo root into its
// slash-separated repo-relative form; relative paths and paths outside
// the root pass through unchanged.
func (s *Store) repoRelative(path string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(s.repoRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// resolveRepoPath is repoRelative's inverse for reads.
func (s *Store) resolveRepoPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.repoRoot, filepath.FromSlash(path))
}

// withLock runs fn while holding the store-wide exclusive lock.
func (s *Store) withLock(fn func() error) error {
	if err := os.MkdirAll(s.rootDir, 0755); err != nil {
		return taskerr.Wrap(taskerr.KindIO, "create context store root", err)
	}
	lock := flock.New(s.lockPath)
	locked, err := lockWithTimeout(lock, storeLockTimeout)
	if err != nil {
		return taskerr.Wrap(taskerr.KindIO, "acquire context store lock", err)
	}
	if !locked {
		return taskerr.Newf(taskerr.KindIO, "timed out acquiring context store lock after %s", storeLockTimeout)
	}
	defer lock.Unlock()
	return fn()
}

func lockWithTimeout(lock *flock.Flock, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		locked, err := lock.TryLock()
		if err != nil {
			return false, err
		}
		if locked {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// atomicWriteFile serializes data to a temp file in dir and renames it
// over target, the same pattern internal/cache uses.
func atomicWriteFile(target string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, target)
}

func (s *Store) readContext(taskID string) (*TaskContext, error) {
	data, err := os.ReadFile(s.contextPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, taskerr.Newf(taskerr.KindDrift, "context not found for task %s", taskID)
		}
		return nil, taskerr.Wrap(taskerr.KindIO, "read context.json", err)
	}
	var ctx TaskContext
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, taskerr.Wrap(taskerr.KindValidation, "parse context.json", err)
	}
	return &ctx, nil
}

func (s *Store) writeContext(ctx *TaskContext) error {
	data, err := ctx.MarshalSorted()
	if err != nil {
		return taskerr.Wrap(taskerr.KindValidation, "marshal context.json", err)
	}
	return atomicWriteFile(s.contextPath(ctx.TaskID), data, 0644)
}

func (s *Store) writeManifest(taskID string, m *ContextManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return taskerr.Wrap(taskerr.KindValidation, "marshal context.manifest", err)
	}
	data = append(data, '\n')
	return atomicWriteFile(s.manifestPath(taskID), data, 0644)
}

func (s *Store) readManifest(taskID string) (*ContextManifest, error) {
	data, err := os.ReadFile(s.manifestPath(taskID))
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindIO, "read context.manifest", err)
	}
	var m ContextManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, taskerr.Wrap(taskerr.KindValidation, "parse context.manifest", err)
	}
	return &m, nil
}

// checkStaleness compares recordedHead against the store's current HEAD
// (if a gitHeadFn was provided) and the context's age; both conditions are
// warnings only, never an error.
func (s *Store) checkStaleness(recordedHead string, createdAt string) []string {
	var warnings []string
	if s.gitHeadFn != nil {
		if head, err := s.gitHeadFn(); err == nil && head != "" && head != recordedHead {
			warnings = append(warnings, fmt.Sprintf("context was created at git HEAD %s, which differs from current HEAD %s", recordedHead, head))
		}
	}
	if createdAt != "" {
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			if time.Since(t) > staleAfter {
				warnings = append(warnings, fmt.Sprintf("context is older than %s", staleAfter))
			}
		}
	}
	return warnings
}
