package task

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Warning is a non-fatal discovery problem: a task file was skipped or an
// archived task looked inconsistent, but discovery continued.
type Warning struct {
	Path    string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Message)
}

// rawTask mirrors the YAML document shape loosely, using yaml.Node for the
// list-shaped fields so both inline and block YAML forms, and a bare
// scalar, are all accepted.
type rawTask struct {
	ID             string             `yaml:"id"`
	Title          string             `yaml:"title"`
	Area           string             `yaml:"area"`
	Priority       string             `yaml:"priority"`
	Status         string             `yaml:"status"`
	SchemaVersion  string             `yaml:"schema_version"`
	Unblocker      bool               `yaml:"unblocker"`
	Order          yaml.Node          `yaml:"order"`
	BlockedBy      yaml.Node          `yaml:"blocked_by"`
	DependsOn      yaml.Node          `yaml:"depends_on"`
	BlockedReason  string             `yaml:"blocked_reason"`
	Scope          Scope              `yaml:"scope"`
	AcceptanceCrit yaml.Node          `yaml:"acceptance_criteria"`
	Plan           yaml.Node          `yaml:"plan"`
	Deliverables   yaml.Node          `yaml:"deliverables"`
	Validation     ValidationBaseline `yaml:"validation"`
	Context        ContextConfig      `yaml:"context"`
	Clarify        Clarifications     `yaml:"clarifications"`
}

// Parse reads one task file from path. A missing mandatory field returns
// (nil, nil, warning) rather than a hard error, so a caller doing bulk
// discovery can keep going.
func Parse(path string) (*Task, *Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	var raw rawTask
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if raw.ID == "" || raw.Title == "" || raw.Status == "" || raw.Priority == "" || raw.Area == "" {
		return nil, &Warning{Path: path, Message: "missing one of id/title/status/priority/area, skipped"}, nil
	}

	schemaVersion := raw.SchemaVersion
	if schemaVersion == "" {
		schemaVersion = "1.0"
	}

	t := &Task{
		ID:             raw.ID,
		Title:          raw.Title,
		Area:           raw.Area,
		Priority:       Priority(raw.Priority),
		Status:         Status(raw.Status),
		SchemaVersion:  schemaVersion,
		Unblocker:      raw.Unblocker,
		Order:          parseOrder(&raw.Order),
		BlockedBy:      parseStringList(&raw.BlockedBy),
		DependsOn:      parseStringList(&raw.DependsOn),
		BlockedReason:  raw.BlockedReason,
		ScopeDoc:       raw.Scope,
		AcceptanceCrit: parseStringList(&raw.AcceptanceCrit),
		Plan:           parseStringList(&raw.Plan),
		Deliverables:   parseStringList(&raw.Deliverables),
		Validation:     raw.Validation,
		ContextDoc:     raw.Context,
		Clarify:        raw.Clarify,
		Path:           path,
		Hash:           hashContent(data),
	}

	if info, err := os.Stat(path); err == nil {
		t.Mtime = info.ModTime()
	}

	return t, nil, nil
}

// parseStringList tolerates three YAML shapes for a "list of strings"
// field: an inline/block sequence, a single bare scalar (treated as a
// one-element list), or an absent node (nil list).
func parseStringList(n *yaml.Node) []string {
	if n == nil || n.Kind == 0 {
		return nil
	}
	switch n.Kind {
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			v := strings.TrimSpace(c.Value)
			if v != "" {
				out = append(out, v)
			}
		}
		return out
	case yaml.ScalarNode:
		v := strings.TrimSpace(n.Value)
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// parseOrder coerces the order field to *int, returning nil when absent or
// unparseable rather than failing the whole file.
func parseOrder(n *yaml.Node) *int {
	if n == nil || n.Kind != yaml.ScalarNode || n.Value == "" {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(n.Value))
	if err != nil {
		return nil
	}
	return &v
}

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
