package task

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SetStatus rewrites a task file's top-level status field in place,
// editing the parsed document node rather than re-marshaling the whole
// Task, so comments and field ordering in the YAML file survive untouched.
func SetStatus(path string, status Status) error {
	return setScalarField(path, "status", string(status))
}

// SetBlockedReason rewrites (or clears, for an empty reason) a task file's
// blocked_reason field in place.
func SetBlockedReason(path string, reason string) error {
	return setScalarField(path, "blocked_reason", reason)
}

// Archive marks a task completed and moves its file from tasks/ into
// docs/completed-tasks/, mirroring the directory split Discover expects.
// repoRoot is the repository root; path is the task's current (active)
// file path. It returns the new path.
func Archive(repoRoot, path string) (string, error) {
	if err := SetStatus(path, StatusCompleted); err != nil {
		return "", err
	}
	rel, err := filepath.Rel(filepath.Join(repoRoot, activeTasksDir), path)
	if err != nil {
		rel = filepath.Base(path)
	}
	dest := filepath.Join(repoRoot, archivedTasksDir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", path, dest, err)
	}
	return dest, nil
}

func setScalarField(path, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("parse %s: not a mapping document", path)
	}
	mapping := doc.Content[0]

	found := false
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1].SetString(value)
			found = true
			break
		}
	}
	if !found {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
		valNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
		mapping.Content = append(mapping.Content, keyNode, valNode)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".taskctl-task-*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if info, statErr := os.Stat(path); statErr == nil {
		os.Chmod(tmpPath, info.Mode())
	}
	return os.Rename(tmpPath, path)
}
