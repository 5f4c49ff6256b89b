// Package task discovers and parses the repository's *.task.yaml files.
package task

import "time"

// Status is the enumerated lifecycle state of a task.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
)

// Priority is the enumerated urgency of a task.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
)

// Scope describes the in/out-of-scope prose of a task.
type Scope struct {
	In  []string `yaml:"in,omitempty" json:"in,omitempty"`
	Out []string `yaml:"out,omitempty" json:"out,omitempty"`
}

// ValidationBaseline lists the commands a task declares for QA.
type ValidationBaseline struct {
	Pipeline string   `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`
	Commands []string `yaml:"commands,omitempty" json:"commands,omitempty"`
}

// ContextConfig carries the task's declared editable scope and related docs.
type ContextConfig struct {
	RepoPaths   []string `yaml:"repo_paths,omitempty" json:"repo_paths,omitempty"`
	RelatedDocs []string `yaml:"related_docs,omitempty" json:"related_docs,omitempty"`
}

// Clarifications points at a task's clarification evidence, if any.
type Clarifications struct {
	EvidencePath string `yaml:"evidence_path,omitempty" json:"evidence_path,omitempty"`
}

// Task is the parsed form of one *.task.yaml file.
type Task struct {
	ID             string             `yaml:"id" json:"id"`
	Title          string             `yaml:"title" json:"title"`
	Area           string             `yaml:"area" json:"area"`
	Priority       Priority           `yaml:"priority" json:"priority"`
	Status         Status             `yaml:"status" json:"status"`
	SchemaVersion  string             `yaml:"schema_version,omitempty" json:"schema_version"`
	Unblocker      bool               `yaml:"unblocker,omitempty" json:"unblocker,omitempty"`
	Order          *int               `yaml:"order,omitempty" json:"order,omitempty"`
	BlockedBy      []string           `yaml:"blocked_by,omitempty" json:"blocked_by,omitempty"`
	DependsOn      []string           `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	BlockedReason  string             `yaml:"blocked_reason,omitempty" json:"blocked_reason,omitempty"`
	ScopeDoc       Scope              `yaml:"scope,omitempty" json:"scope,omitempty"`
	AcceptanceCrit []string           `yaml:"acceptance_criteria,omitempty" json:"acceptance_criteria,omitempty"`
	Plan           []string           `yaml:"plan,omitempty" json:"plan,omitempty"`
	Deliverables   []string           `yaml:"deliverables,omitempty" json:"deliverables,omitempty"`
	Validation     ValidationBaseline `yaml:"validation,omitempty" json:"validation,omitempty"`
	ContextDoc     ContextConfig      `yaml:"context,omitempty" json:"context,omitempty"`
	Clarify        Clarifications     `yaml:"clarifications,omitempty" json:"clarifications,omitempty"`

	// Archived marks a task discovered under docs/completed-tasks.
	Archived bool `yaml:"-" json:"archived,omitempty"`

	// Path, Mtime and Hash are filesystem metadata attached at parse time,
	// not part of the YAML document.
	Path  string    `yaml:"-" json:"-"`
	Mtime time.Time `yaml:"-" json:"-"`
	Hash  string    `yaml:"-" json:"-"`
}

// IsCompleted reports whether the task's status is completed.
func (t *Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// IsReady reports whether every entry in BlockedBy is present in
// completedIDs. DependsOn never affects readiness.
func (t *Task) IsReady(completedIDs map[string]bool) bool {
	if t.IsCompleted() {
		return false
	}
	for _, id := range t.BlockedBy {
		if !completedIDs[id] {
			return false
		}
	}
	return true
}
