// Package cache implements the persistent, file-locked JSON cache of
// parsed tasks at tasks/.cache/tasks_index.json.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/taskctl/taskctl/internal/task"
)

// CacheVersion is bumped whenever the on-disk cache schema changes.
const CacheVersion = 1

const lockTimeout = 10 * time.Second

// Record is the serialized per-task cache entry.
type Record struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Mtime    int64  `json:"mtime"`
	Hash     string `json:"hash"`
	Archived bool   `json:"archived"`
}

// Document is the full on-disk cache file.
type Document struct {
	Version     int               `json:"version"`
	GeneratedAt string            `json:"generated_at"`
	Tasks       map[string]Record `json:"tasks"`
	Archives    []string          `json:"archives"`
}

// Info summarizes the current cache for diagnostics.
type Info struct {
	Path         string `json:"path"`
	Exists       bool   `json:"exists"`
	Version      int    `json:"version"`
	GeneratedAt  string `json:"generated_at"`
	TaskCount    int    `json:"task_count"`
	ArchiveCount int    `json:"archive_count"`
}

// Store is the persistent datastore over one repository's task cache.
type Store struct {
	repoRoot  string
	cacheDir  string
	cachePath string
	lockPath  string
}

// New constructs a Store rooted at repoRoot.
func New(repoRoot string) *Store {
	cacheDir := filepath.Join(repoRoot, "tasks", ".cache")
	return &Store{
		repoRoot:  repoRoot,
		cacheDir:  cacheDir,
		cachePath: filepath.Join(cacheDir, "tasks_index.json"),
		lockPath:  filepath.Join(cacheDir, "tasks_index.lock"),
	}
}

// LoadTasks returns the current set of tasks, rehydrating from the cache
// when it is valid or doing a full filesystem rediscovery otherwise.
func (s *Store) LoadTasks(forceRefresh bool) ([]*task.Task, []task.Warning, error) {
	lock := flock.New(s.lockPath)
	locked, err := lockWithTimeout(lock, lockTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !locked {
		return nil, nil, fmt.Errorf("timed out acquiring cache lock after %s", lockTimeout)
	}
	defer lock.Unlock()

	if !forceRefresh {
		if tasks, ok := s.loadFromCache(); ok {
			return tasks, nil, nil
		}
	}

	result, err := task.Discover(s.repoRoot)
	if err != nil {
		return nil, nil, err
	}
	if err := s.saveToCache(result.Tasks); err != nil {
		return nil, nil, fmt.Errorf("save cache: %w", err)
	}
	return result.Tasks, result.Warnings, nil
}

// loadFromCache returns (tasks, true) if the on-disk cache is present,
// version-matched, and every cached path still exists on disk with an
// unchanged mtime, and no new *.task.yaml files have appeared that the
// cache does not know about. Any other condition returns (nil, false),
// signalling the caller to rediscover.
func (s *Store) loadFromCache() ([]*task.Task, bool) {
	doc, err := s.readDocument()
	if err != nil {
		return nil, false
	}
	if doc.Version != CacheVersion {
		return nil, false
	}

	tasks := make([]*task.Task, 0, len(doc.Tasks))
	cachedPaths := make(map[string]bool, len(doc.Tasks))

	for id, rec := range doc.Tasks {
		info, err := os.Stat(rec.Path)
		if err != nil {
			return nil, false
		}
		if info.ModTime().UnixNano() != rec.Mtime {
			return nil, false
		}
		t, warn, parseErr := task.Parse(rec.Path)
		if parseErr != nil || warn != nil || t == nil {
			return nil, false
		}
		if t.ID != id {
			return nil, false
		}
		t.Archived = rec.Archived
		tasks = append(tasks, t)
		cachedPaths[rec.Path] = true
	}

	if hasUntrackedTaskFile(s.repoRoot, cachedPaths) {
		return nil, false
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, true
}

func hasUntrackedTaskFile(repoRoot string, cachedPaths map[string]bool) bool {
	result, err := task.Discover(repoRoot)
	if err != nil {
		return true
	}
	if len(result.Warnings) > 0 {
		// A newly-added, partially-written task file is exactly the
		// kind of drift that should trigger a full rebuild.
		return true
	}
	for _, t := range result.Tasks {
		if !cachedPaths[t.Path] {
			return true
		}
	}
	return false
}

func (s *Store) readDocument() (*Document, error) {
	data, err := os.ReadFile(s.cachePath)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// saveToCache writes the cache document atomically: serialize with sorted
// keys to a temp file in the same directory, then rename over the target.
func (s *Store) saveToCache(tasks []*task.Task) error {
	if err := os.MkdirAll(s.cacheDir, 0755); err != nil {
		return err
	}

	doc := Document{
		Version:     CacheVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Tasks:       make(map[string]Record, len(tasks)),
	}
	for _, t := range tasks {
		doc.Tasks[t.ID] = Record{
			ID:       t.ID,
			Path:     t.Path,
			Mtime:    t.Mtime.UnixNano(),
			Hash:     t.Hash,
			Archived: t.Archived,
		}
		if t.Archived {
			doc.Archives = append(doc.Archives, t.ID)
		}
	}
	sort.Strings(doc.Archives)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.cacheDir, "tasks_index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
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
	return os.Rename(tmpPath, s.cachePath)
}

// GetCacheInfo reports the current cache's metadata without rebuilding it.
func (s *Store) GetCacheInfo() (Info, error) {
	doc, err := s.readDocument()
	if err != nil {
		if os.IsNotExist(err) {
			return Info{Path: s.cachePath, Exists: false}, nil
		}
		return Info{}, err
	}
	return Info{
		Path:         s.cachePath,
		Exists:       true,
		Version:      doc.Version,
		GeneratedAt:  doc.GeneratedAt,
		TaskCount:    len(doc.Tasks),
		ArchiveCount: len(doc.Archives),
	}, nil
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
