// Package compliance reads and writes two file formats shared with
// outside tooling: the quarantine index (which tasks are blocked from
// context initialization) and the exception ledger (records of refused
// initializations). Neither format's full schema is owned by this
// package; it covers only the minimal shape needed to read a boolean and
// append an entry, with the same atomic-write idiom as internal/cache
// and internal/contextstore.
package compliance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
)

const lockTimeout = 10 * time.Second

// QuarantineEntry is one task's quarantine record.
type QuarantineEntry struct {
	TaskID    string `json:"task_id"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
	CreatedBy string `json:"created_by"`
}

type quarantineIndex struct {
	Version int               `json:"version"`
	Tasks   []QuarantineEntry `json:"tasks"`
}

// ExceptionEntry is one record in the exception ledger, written when the
// core refuses to initialize a context (e.g. a secret scan hit without
// force).
type ExceptionEntry struct {
	ID         string `json:"id"`
	TaskID     string `json:"task_id"`
	Reason     string `json:"reason"`
	CreatedAt  string `json:"created_at"`
	CreatedBy  string `json:"created_by"`
	ResolvedAt string `json:"resolved_at,omitempty"`
	ResolvedBy string `json:"resolved_by,omitempty"`
}

type exceptionLedger struct {
	Version    int              `json:"version"`
	Exceptions []ExceptionEntry `json:"exceptions"`
}

// Store mediates reads and writes of both files under
// <repo>/docs/compliance/.
type Store struct {
	dir string
}

// New returns a Store rooted at <repoRoot>/docs/compliance.
func New(repoRoot string) *Store {
	return &Store{dir: filepath.Join(repoRoot, "docs", "compliance")}
}

func (s *Store) quarantineIndexPath() string { return filepath.Join(s.dir, "quarantine", "index.json") }
func (s *Store) quarantineLockPath() string  { return filepath.Join(s.dir, "quarantine", "index.lock") }
func (s *Store) exceptionLedgerPath() string {
	return filepath.Join(s.dir, "context-cache-exceptions.json")
}
func (s *Store) exceptionLockPath() string {
	return filepath.Join(s.dir, "context-cache-exceptions.lock")
}

// IsQuarantined reports whether taskID has an active quarantine entry.
func (s *Store) IsQuarantined(taskID string) (bool, error) {
	idx, err := readJSON[quarantineIndex](s.quarantineIndexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for _, e := range idx.Tasks {
		if e.TaskID == taskID {
			return true, nil
		}
	}
	return false, nil
}

// ListQuarantined returns every currently quarantined task, sorted by id.
func (s *Store) ListQuarantined() ([]QuarantineEntry, error) {
	idx, err := readJSON[quarantineIndex](s.quarantineIndexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := append([]QuarantineEntry(nil), idx.Tasks...)
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out, nil
}

// Quarantine adds or replaces taskID's quarantine entry.
func (s *Store) Quarantine(entry QuarantineEntry) error {
	lock := flock.New(s.quarantineLockPath())
	locked, err := lockWithTimeout(lock, lockTimeout)
	if err != nil || !locked {
		return fmt.Errorf("acquire quarantine lock: %w", err)
	}
	defer lock.Unlock()

	idx, err := readJSON[quarantineIndex](s.quarantineIndexPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if idx == nil {
		idx = &quarantineIndex{Version: 1}
	}
	filtered := idx.Tasks[:0]
	for _, e := range idx.Tasks {
		if e.TaskID != entry.TaskID {
			filtered = append(filtered, e)
		}
	}
	idx.Tasks = append(filtered, entry)
	sort.Slice(idx.Tasks, func(i, j int) bool { return idx.Tasks[i].TaskID < idx.Tasks[j].TaskID })
	return writeJSONAtomic(s.quarantineIndexPath(), idx)
}

// ReleaseQuarantine removes taskID's quarantine entry. Idempotent: a
// second release of an already-released task succeeds without error.
func (s *Store) ReleaseQuarantine(taskID string) error {
	lock := flock.New(s.quarantineLockPath())
	locked, err := lockWithTimeout(lock, lockTimeout)
	if err != nil || !locked {
		return fmt.Errorf("acquire quarantine lock: %w", err)
	}
	defer lock.Unlock()

	idx, err := readJSON[quarantineIndex](s.quarantineIndexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	filtered := idx.Tasks[:0]
	for _, e := range idx.Tasks {
		if e.TaskID != taskID {
			filtered = append(filtered, e)
		}
	}
	idx.Tasks = filtered
	return writeJSONAtomic(s.quarantineIndexPath(), idx)
}

// ListExceptions returns every ledger entry, sorted by id.
func (s *Store) ListExceptions() ([]ExceptionEntry, error) {
	ledger, err := readJSON[exceptionLedger](s.exceptionLedgerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := append([]ExceptionEntry(nil), ledger.Exceptions...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AddException appends a new exception entry and returns its assigned id.
func (s *Store) AddException(entry ExceptionEntry) (string, error) {
	lock := flock.New(s.exceptionLockPath())
	locked, err := lockWithTimeout(lock, lockTimeout)
	if err != nil || !locked {
		return "", fmt.Errorf("acquire exception ledger lock: %w", err)
	}
	defer lock.Unlock()

	ledger, err := readJSON[exceptionLedger](s.exceptionLedgerPath())
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	if ledger == nil {
		ledger = &exceptionLedger{Version: 1}
	}
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("EXC-%04d", len(ledger.Exceptions)+1)
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	ledger.Exceptions = append(ledger.Exceptions, entry)
	if err := writeJSONAtomic(s.exceptionLedgerPath(), ledger); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// ResolveException marks an existing exception entry resolved.
func (s *Store) ResolveException(id, resolvedBy string) error {
	lock := flock.New(s.exceptionLockPath())
	locked, err := lockWithTimeout(lock, lockTimeout)
	if err != nil || !locked {
		return fmt.Errorf("acquire exception ledger lock: %w", err)
	}
	defer lock.Unlock()

	ledger, err := readJSON[exceptionLedger](s.exceptionLedgerPath())
	if err != nil {
		return err
	}
	found := false
	for i := range ledger.Exceptions {
		if ledger.Exceptions[i].ID == id {
			ledger.Exceptions[i].ResolvedAt = time.Now().UTC().Format(time.RFC3339)
			ledger.Exceptions[i].ResolvedBy = resolvedBy
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no exception entry %s", id)
	}
	return writeJSONAtomic(s.exceptionLedgerPath(), ledger)
}

// CleanupExceptions removes every resolved entry from the ledger and
// returns how many were removed.
func (s *Store) CleanupExceptions() (int, error) {
	lock := flock.New(s.exceptionLockPath())
	locked, err := lockWithTimeout(lock, lockTimeout)
	if err != nil || !locked {
		return 0, fmt.Errorf("acquire exception ledger lock: %w", err)
	}
	defer lock.Unlock()

	ledger, err := readJSON[exceptionLedger](s.exceptionLedgerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	kept := ledger.Exceptions[:0]
	removed := 0
	for _, e := range ledger.Exceptions {
		if e.ResolvedAt != "" {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	ledger.Exceptions = kept
	if err := writeJSONAtomic(s.exceptionLedgerPath(), ledger); err != nil {
		return 0, err
	}
	return removed, nil
}

func readJSON[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, "compliance-*.tmp")
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
	return os.Rename(tmpPath, path)
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
		time.Sleep(50 * time.Millisecond)
	}
}
