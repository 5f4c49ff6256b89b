package contextstore

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/taskctl/taskctl/internal/taskerr"
)

// InitOptions carries everything InitContext needs beyond the task id.
type InitOptions struct {
	Immutable     Immutable
	GitHead       string
	TaskFileSHA   string
	CreatedBy     string
	ForceSecrets  bool
	SourceFiles   []SourceFile
	TaskFileBytes []byte // written verbatim to task-snapshot.yaml
}

// InitContext creates a new per-task context directory. It fails if one
// already exists for taskID.
func (s *Store) InitContext(taskID string, opts InitOptions) (*TaskContext, error) {
	var result *TaskContext
	err := s.withLock(func() error {
		if _, err := os.Stat(s.contextPath(taskID)); err == nil {
			return taskerr.Newf(taskerr.KindValidation, "context already exists for task %s", taskID).WithRecovery("use rebuild-context to recreate it")
		}

		if _, err := scanForSecrets(opts.Immutable, opts.ForceSecrets); err != nil {
			return err
		}

		opts.Immutable.RepoPaths = NormalizeRepoPaths(opts.Immutable.RepoPaths)

		ctx := &TaskContext{
			Version:          SchemaVersion,
			TaskID:           taskID,
			GitHead:          opts.GitHead,
			TaskFileSHA:      opts.TaskFileSHA,
			CreatedAt:        nowRFC3339(),
			CreatedBy:        opts.CreatedBy,
			Immutable:        opts.Immutable,
			AuditUpdateCount: 0,
		}

		if err := os.MkdirAll(s.evidenceDir(taskID), 0755); err != nil {
			return taskerr.Wrap(taskerr.KindIO, "create evidence directory", err)
		}
		if err := s.writeContext(ctx); err != nil {
			return err
		}
		sources := make([]SourceFile, len(opts.SourceFiles))
		for i, sf := range opts.SourceFiles {
			sf.Path = s.repoRelative(sf.Path)
			sources[i] = sf
		}
		if err := s.writeManifest(taskID, NewManifest(sources)); err != nil {
			return err
		}
		if opts.TaskFileBytes != nil {
			if err := atomicWriteFile(s.snapshotPath(taskID), opts.TaskFileBytes, 0644); err != nil {
				return taskerr.Wrap(taskerr.KindIO, "write task-snapshot.yaml", err)
			}
		}

		result = ctx
		return nil
	})
	return result, err
}

// GetContext reads a task's context, returning staleness warnings
// alongside (never failing on staleness).
func (s *Store) GetContext(taskID string) (*TaskContext, []string, error) {
	var ctx *TaskContext
	var warnings []string
	err := s.withLock(func() error {
		c, err := s.readContext(taskID)
		if err != nil {
			return err
		}
		ctx = c
		warnings = s.checkStaleness(c.GitHead, c.CreatedAt)
		return nil
	})
	return ctx, warnings, err
}

// GetManifest reads a task's context.manifest.
func (s *Store) GetManifest(taskID string) (*ContextManifest, error) {
	var m *ContextManifest
	err := s.withLock(func() error {
		mm, err := s.readManifest(taskID)
		if err != nil {
			return err
		}
		m = mm
		return nil
	})
	return m, err
}

// UpdateCoordination merges updates into the named role's coordination
// record. Unknown field names fail closed.
func (s *Store) UpdateCoordination(taskID string, role AgentRole, updates map[string]any, actor string, forceSecrets bool) (*TaskContext, error) {
	if !role.IsValid() {
		return nil, taskerr.Newf(taskerr.KindValidation, "invalid coordination role %q", role)
	}

	var result *TaskContext
	err := s.withLock(func() error {
		ctx, err := s.readContext(taskID)
		if err != nil {
			return err
		}

		if _, err := scanForSecrets(updates, forceSecrets); err != nil {
			return err
		}

		coord := ctx.Coordination(role)
		if err := applyCoordinationUpdates(coord, updates); err != nil {
			return err
		}

		ctx.AuditUpdatedAt = nowRFC3339()
		ctx.AuditUpdatedBy = actor
		ctx.AuditUpdateCount++

		if err := s.writeContext(ctx); err != nil {
			return err
		}
		result = ctx
		return nil
	})
	return result, err
}

// applyCoordinationUpdates sets only the known AgentCoordination fields;
// any unrecognized key is a validation error.
func applyCoordinationUpdates(coord *AgentCoordination, updates map[string]any) error {
	for key, value := range updates {
		switch key {
		case "status":
			s, ok := value.(string)
			if !ok {
				return taskerr.Newf(taskerr.KindValidation, "coordination field %q must be a string", key)
			}
			coord.Status = s
		case "session_id":
			s, ok := value.(string)
			if !ok {
				return taskerr.Newf(taskerr.KindValidation, "coordination field %q must be a string", key)
			}
			coord.SessionID = s
		case "qa_log_path":
			s, ok := value.(string)
			if !ok {
				return taskerr.Newf(taskerr.KindValidation, "coordination field %q must be a string", key)
			}
			coord.QALogPath = s
		case "completed_at":
			s, ok := value.(string)
			if !ok {
				return taskerr.Newf(taskerr.KindValidation, "coordination field %q must be a string", key)
			}
			coord.CompletedAt = s
		case "worktree_snapshot":
			snap, ok := value.(*WorktreeSnapshot)
			if !ok {
				return taskerr.Newf(taskerr.KindValidation, "coordination field %q must be a *WorktreeSnapshot", key)
			}
			coord.WorktreeSnapshot = snap
		default:
			return taskerr.Newf(taskerr.KindValidation, "invalid coordination field: %s", key)
		}
	}
	return nil
}

// PurgeContext idempotently removes a task's entire context directory.
func (s *Store) PurgeContext(taskID string) error {
	return s.withLock(func() error {
		if err := os.RemoveAll(s.taskDir(taskID)); err != nil {
			return taskerr.Wrap(taskerr.KindIO, "purge context directory", err)
		}
		return nil
	})
}

// RebuildContext checks the stored manifest for drift against its
// recorded source files, refuses when drift is present unless
// forceSecrets is set, then purges and re-initializes from opts.
func (s *Store) RebuildContext(taskID string, opts InitOptions, actor string) (*TaskContext, error) {
	manifest, err := s.GetManifest(taskID)
	if err == nil {
		for _, sf := range manifest.SourceFiles {
			data, readErr := os.ReadFile(s.resolveRepoPath(sf.Path))
			if readErr != nil {
				if !opts.ForceSecrets {
					return nil, taskerr.Newf(taskerr.KindDrift, "source file %s referenced by manifest is missing", sf.Path).WithRecovery("pass force to rebuild anyway")
				}
				continue
			}
			if sha256Hex(data) != sf.SHA256 {
				if !opts.ForceSecrets {
					return nil, taskerr.Newf(taskerr.KindDrift, "source file %s has changed since the last context build", sf.Path).WithRecovery("pass force to rebuild anyway")
				}
			}
		}
	}

	if err := s.PurgeContext(taskID); err != nil {
		return nil, err
	}
	opts.CreatedBy = actor
	return s.InitContext(taskID, opts)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// LoadTaskSnapshotYAML parses the stored task-snapshot.yaml back into a
// generic map, used by diagnostics commands that want the raw snapshot.
func (s *Store) LoadTaskSnapshotYAML(taskID string) (map[string]any, error) {
	data, err := os.ReadFile(s.snapshotPath(taskID))
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindIO, "read task-snapshot.yaml", err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, taskerr.Wrap(taskerr.KindValidation, "parse task-snapshot.yaml", err)
	}
	return out, nil
}
