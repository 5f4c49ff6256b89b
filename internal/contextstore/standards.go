package contextstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/taskctl/taskctl/internal/taskerr"
)

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// normalizeHeading lowercases, maps "&" to "and", strips punctuation, and
// collapses whitespace so headings can be matched loosely ("Style & Form"
// matches "style and form").
func normalizeHeading(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", "and")
	var b strings.Builder
	lastWasSpace := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '-' || r == '_':
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastWasSpace = false
		default:
			// punctuation is dropped entirely
		}
	}
	return strings.TrimSpace(b.String())
}

// excerptSection is one located markdown section.
type excerptSection struct {
	Heading   string
	Level     int
	LineStart int
	LineEnd   int
	Body      string
}

// findSection locates the section in content whose heading normalizes to
// the same value as wantHeading. The section runs from just after the
// heading line to the line before the next heading of the same or higher
// level, or EOF.
func findSection(content, wantHeading string) (*excerptSection, bool) {
	lines := strings.Split(content, "\n")
	want := normalizeHeading(wantHeading)

	for i, line := range lines {
		m := headingRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if normalizeHeading(m[2]) != want {
			continue
		}
		level := len(m[1])
		end := len(lines)
		for j := i + 1; j < len(lines); j++ {
			m2 := headingRe.FindStringSubmatch(lines[j])
			if m2 != nil && len(m2[1]) <= level {
				end = j
				break
			}
		}
		body := strings.Join(lines[i+1:end], "\n")
		body = trimBlankRuns(body)
		return &excerptSection{Heading: m[2], Level: level, LineStart: i + 1, LineEnd: end, Body: body}, true
	}
	return nil, false
}

func trimBlankRuns(s string) string {
	lines := strings.Split(s, "\n")
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

// normalizeForHash trims trailing whitespace per line and collapses runs
// of blank lines to one, so incidental whitespace differences don't
// change the content hash.
func normalizeForHash(body string) string {
	lines := strings.Split(body, "\n")
	var out []string
	blankRun := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t\r")
		if trimmed == "" {
			if blankRun {
				continue
			}
			blankRun = true
		} else {
			blankRun = false
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func contentHash(body string) string {
	sum := sha256.Sum256([]byte(normalizeForHash(body)))
	return hex.EncodeToString(sum[:])
}

func excerptIDFromHash(hash string) string {
	if len(hash) < 8 {
		return hash
	}
	return hash[:8]
}

// standardsIndex is evidence/standards/index.json.
type standardsIndex struct {
	Excerpts []StandardsCitation `json:"excerpts"`
}

func (s *Store) standardsIndexPath(taskID string) string {
	return filepath.Join(s.evidenceDir(taskID), "standards", "index.json")
}

func (s *Store) standardsExcerptPath(taskID, excerptID string) string {
	return filepath.Join(s.evidenceDir(taskID), "standards", excerptID+".md")
}

// ExtractStandardsExcerpt finds heading in file (resolved relative to
// repoRoot when not absolute), stores a normalized copy under the task's
// evidence tree, and returns the StandardsCitation record for it.
func (s *Store) ExtractStandardsExcerpt(repoRoot, taskID, file, heading string) (*StandardsCitation, error) {
	fullPath := file
	if !filepath.IsAbs(file) {
		fullPath = filepath.Join(repoRoot, file)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindIO, "read standards file", err)
	}

	section, ok := findSection(string(data), heading)
	if !ok {
		return nil, taskerr.Newf(taskerr.KindValidation, "heading %q not found in %s", heading, file)
	}

	hash := contentHash(section.Body)
	excerptID := excerptIDFromHash(hash)

	citation := &StandardsCitation{
		File:          file,
		Section:       section.Heading,
		LineStart:     section.LineStart,
		LineEnd:       section.LineEnd,
		ContentSHA256: hash,
		ExcerptID:     excerptID,
		Requirement:   RequirementSummary(section.Body),
	}

	var werr error
	werr = s.withLock(func() error {
		if err := atomicWriteFile(s.standardsExcerptPath(taskID, excerptID), []byte(section.Body+"\n"), 0644); err != nil {
			return taskerr.Wrap(taskerr.KindIO, "write standards excerpt", err)
		}
		idx, _ := s.readStandardsIndex(taskID)
		idx.Excerpts = appendOrReplaceCitation(idx.Excerpts, *citation)
		return s.writeStandardsIndex(taskID, idx)
	})
	if werr != nil {
		return nil, werr
	}

	return citation, nil
}

func appendOrReplaceCitation(list []StandardsCitation, c StandardsCitation) []StandardsCitation {
	for i, existing := range list {
		if existing.ExcerptID == c.ExcerptID {
			list[i] = c
			return list
		}
	}
	return append(list, c)
}

func (s *Store) readStandardsIndex(taskID string) (*standardsIndex, error) {
	data, err := os.ReadFile(s.standardsIndexPath(taskID))
	if err != nil {
		return &standardsIndex{}, nil
	}
	var idx standardsIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return &standardsIndex{}, nil
	}
	return &idx, nil
}

func (s *Store) writeStandardsIndex(taskID string, idx *standardsIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return atomicWriteFile(s.standardsIndexPath(taskID), data, 0644)
}

// VerifyExcerptFreshness reports whether the cited section's current
// normalized content still matches citation.ContentSHA256.
func (s *Store) VerifyExcerptFreshness(repoRoot string, citation StandardsCitation) bool {
	fullPath := citation.File
	if !filepath.IsAbs(fullPath) {
		fullPath = filepath.Join(repoRoot, citation.File)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return false
	}
	section, ok := findSection(string(data), citation.Section)
	if !ok {
		return false
	}
	return contentHash(section.Body) == citation.ContentSHA256
}

// InvalidateStaleExcerpts removes cached excerpt files whose source no
// longer matches, pruning them from the index, and returns their ids.
func (s *Store) InvalidateStaleExcerpts(repoRoot, taskID string) ([]string, error) {
	var removed []string
	err := s.withLock(func() error {
		idx, err := s.readStandardsIndex(taskID)
		if err != nil {
			return err
		}
		var kept []StandardsCitation
		for _, c := range idx.Excerpts {
			if s.VerifyExcerptFreshness(repoRoot, c) {
				kept = append(kept, c)
				continue
			}
			os.Remove(s.standardsExcerptPath(taskID, c.ExcerptID))
			removed = append(removed, c.ExcerptID)
		}
		idx.Excerpts = kept
		return s.writeStandardsIndex(taskID, idx)
	})
	return removed, err
}

// RequirementSummary truncates a section body to at most 140 characters
// for a one-line summary, with no ellipsis appended.
func RequirementSummary(body string) string {
	oneLine := strings.Join(strings.Fields(body), " ")
	if len(oneLine) > 140 {
		return oneLine[:140]
	}
	return oneLine
}
