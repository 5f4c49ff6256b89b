package task

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

const (
	activeTasksDir   = "tasks"
	archivedTasksDir = "docs/completed-tasks"
	taskFileSuffix   = ".task.yaml"
)

// DiscoverResult is the outcome of a full repository scan.
type DiscoverResult struct {
	Tasks    []*Task
	Warnings []Warning
}

// Discover walks the active and archived task trees under repoRoot and
// returns every parsed task plus the warnings collected along the way.
// Discovery never aborts on a single bad file; it is single-threaded, per
// the no-internal-parallelism scheduling model.
func Discover(repoRoot string) (*DiscoverResult, error) {
	result := &DiscoverResult{}

	if err := walkTaskDir(filepath.Join(repoRoot, activeTasksDir), false, result); err != nil {
		return nil, err
	}
	if err := walkTaskDir(filepath.Join(repoRoot, archivedTasksDir), true, result); err != nil {
		return nil, err
	}

	sort.Slice(result.Tasks, func(i, j int) bool { return result.Tasks[i].ID < result.Tasks[j].ID })
	return result, nil
}

func walkTaskDir(dir string, archived bool, result *DiscoverResult) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d == nil {
				// Root directory itself is missing; that's fine, there
				// just aren't any tasks of this kind yet.
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(d.Name()) == "" || !hasTaskSuffix(d.Name()) {
			return nil
		}

		t, warn, parseErr := Parse(path)
		if parseErr != nil {
			result.Warnings = append(result.Warnings, Warning{Path: path, Message: parseErr.Error()})
			return nil
		}
		if warn != nil {
			result.Warnings = append(result.Warnings, *warn)
			return nil
		}

		t.Archived = archived
		if archived && t.Status != StatusCompleted {
			result.Warnings = append(result.Warnings, Warning{
				Path:    path,
				Message: fmt.Sprintf("archived task %s has status %q, expected completed", t.ID, t.Status),
			})
		}

		result.Tasks = append(result.Tasks, t)
		return nil
	})
	if err != nil && !isNotExistWalkErr(err) {
		return err
	}
	return nil
}

func hasTaskSuffix(name string) bool {
	if len(name) < len(taskFileSuffix) {
		return false
	}
	return name[len(name)-len(taskFileSuffix):] == taskFileSuffix
}

func isNotExistWalkErr(err error) bool {
	_, ok := err.(*fs.PathError)
	return ok
}
