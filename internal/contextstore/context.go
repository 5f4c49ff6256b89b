// Package contextstore implements the per-task context directory: an
// immutable provenance snapshot, three mutable agent coordination
// records, standards excerpts, evidence attachments, worktree snapshots,
// and QA result recording.
package contextstore

import (
	"encoding/json"
	"time"
)

// SchemaVersion is the context.json schema version written by this
// implementation.
const SchemaVersion = 1

// AgentRole names one of the three coordination slots a TaskContext holds.
type AgentRole string

const (
	RoleImplementer AgentRole = "implementer"
	RoleReviewer    AgentRole = "reviewer"
	RoleValidator   AgentRole = "validator"
)

// IsValid reports whether r is one of the three known roles.
func (r AgentRole) IsValid() bool {
	switch r {
	case RoleImplementer, RoleReviewer, RoleValidator:
		return true
	default:
		return false
	}
}

// StandardsCitation records one section of a standards file cited by a
// task's immutable provenance.
type StandardsCitation struct {
	File          string `json:"file"`
	Section       string `json:"section"`
	LineStart     int    `json:"line_start"`
	LineEnd       int    `json:"line_end"`
	ContentSHA256 string `json:"content_sha256"`
	ExcerptID     string `json:"excerpt_id"`
	Requirement   string `json:"requirement,omitempty"`
}

// QACommand is one declared validation command.
type QACommand struct {
	ID      string `json:"id"`
	Command string `json:"command"`
}

// QACommandSummary is the heuristically parsed outcome of one QA log.
type QACommandSummary struct {
	LintErrors     int     `json:"lint_errors,omitempty"`
	LintWarnings   int     `json:"lint_warnings,omitempty"`
	TypeErrors     int     `json:"type_errors,omitempty"`
	TestsPassed    int     `json:"tests_passed,omitempty"`
	TestsFailed    int     `json:"tests_failed,omitempty"`
	CoverageLines  float64 `json:"coverage_lines,omitempty"`
	CoverageBranch float64 `json:"coverage_branches,omitempty"`
	CoverageFuncs  float64 `json:"coverage_functions,omitempty"`
}

// QACommandResult is one recorded execution of a declared QA command.
type QACommandResult struct {
	CommandID  string           `json:"command_id"`
	Command    string           `json:"command"`
	ExitCode   int              `json:"exit_code"`
	LogPath    string           `json:"log_path,omitempty"`
	Summary    QACommandSummary `json:"summary"`
	RecordedAt string           `json:"recorded_at"`
	RecordedBy string           `json:"recorded_by"`
	GitHead    string           `json:"git_head"`
	DurationMs *int64           `json:"duration_ms,omitempty"`
}

// ValidationBaseline is the immutable declared-QA-commands section plus
// the mutable, append-only results recorded against it.
type ValidationBaseline struct {
	Commands  []QACommand       `json:"commands,omitempty"`
	QAResults []QACommandResult `json:"qa_results,omitempty"`
}

// TaskSnapshot is the frozen provenance copy of a task's content at
// context-init time.
type TaskSnapshot struct {
	Title              string   `json:"title"`
	Priority           string   `json:"priority"`
	Area               string   `json:"area"`
	Description        string   `json:"description,omitempty"`
	ScopeIn            []string `json:"scope_in,omitempty"`
	ScopeOut           []string `json:"scope_out,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	Plan               []string `json:"plan,omitempty"`
	Deliverables       []string `json:"deliverables,omitempty"`
}

// Immutable is the frozen provenance section of a TaskContext, written
// exactly once at InitContext time. Nothing in this package exposes a
// setter on it after init; only UpdateCoordination/AttachEvidence/
// RecordQA/SnapshotWorktree/PurgeContext/RebuildContext may touch a
// context afterward, and none of them reach into this struct.
type Immutable struct {
	TaskSnapshot       TaskSnapshot        `json:"task_snapshot"`
	StandardsCitations []StandardsCitation `json:"standards_citations,omitempty"`
	ValidationBaseline ValidationBaseline  `json:"validation_baseline"`
	RepoPaths          []string            `json:"repo_paths,omitempty"`
}

// FileChecksum is one file's recorded content checksum within a worktree
// snapshot.
type FileChecksum struct {
	Path   string `json:"path"`
	Status string `json:"status"` // A, M, D, R
	SHA256 string `json:"sha256"`
}

// WorktreeSnapshot captures the state of the working tree at hand-off.
type WorktreeSnapshot struct {
	BaseCommit string         `json:"base_commit"`
	SnapshotAt string         `json:"snapshot_at"`
	DiffPath   string         `json:"diff_path"`
	DiffSHA256 string         `json:"diff_sha256"`
	Files      []FileChecksum `json:"files"`
	DiffStat   string         `json:"diff_stat"`
	ScopeHash  string         `json:"scope_hash"`

	// Reviewer-only incremental diff against the implementer's diff.
	DiffFromImplementer  *string `json:"diff_from_implementer,omitempty"`
	IncrementalDiffSHA   *string `json:"incremental_diff_sha,omitempty"`
	IncrementalDiffError *string `json:"incremental_diff_error,omitempty"`
}

// AgentCoordination is the mutable per-role coordination record.
type AgentCoordination struct {
	Status           string            `json:"status,omitempty"`
	SessionID        string            `json:"session_id,omitempty"`
	QALogPath        string            `json:"qa_log_path,omitempty"`
	CompletedAt      string            `json:"completed_at,omitempty"`
	WorktreeSnapshot *WorktreeSnapshot `json:"worktree_snapshot,omitempty"`
}

// TaskContext is the full per-task context record stored at
// .agent-output/<task-id>/context.json.
type TaskContext struct {
	Version     int       `json:"version"`
	TaskID      string    `json:"task_id"`
	GitHead     string    `json:"git_head"`
	TaskFileSHA string    `json:"task_file_sha"`
	CreatedAt   string    `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
	Immutable   Immutable `json:"immutable"`

	Implementer AgentCoordination `json:"implementer"`
	Reviewer    AgentCoordination `json:"reviewer"`
	Validator   AgentCoordination `json:"validator"`

	AuditUpdatedAt   string `json:"audit_updated_at,omitempty"`
	AuditUpdatedBy   string `json:"audit_updated_by,omitempty"`
	AuditUpdateCount int    `json:"audit_update_count"`
}

// Coordination returns a pointer to the coordination record for role, or
// nil if role is not one of the three known roles.
func (c *TaskContext) Coordination(role AgentRole) *AgentCoordination {
	switch role {
	case RoleImplementer:
		return &c.Implementer
	case RoleReviewer:
		return &c.Reviewer
	case RoleValidator:
		return &c.Validator
	default:
		return nil
	}
}

// MarshalSorted renders the context as indented JSON with a trailing
// newline. encoding/json emits struct fields in declaration order, so
// keeping every struct's fields in a fixed declaration order is what
// makes the on-disk bytes stable across runs.
func (c *TaskContext) MarshalSorted() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
