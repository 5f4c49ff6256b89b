package contextstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/taskctl/taskctl/internal/taskerr"
)

// DefaultEvidenceSizeCeiling is the default per-file size above which an
// attachment is compressed rather than copied verbatim. Overridable via
// .taskctl.toml (see internal/config).
const DefaultEvidenceSizeCeiling = 10 * 1024 * 1024 // 10 MiB

// AttachmentType enumerates the kinds of artifact that can be attached to
// a task's evidence tree.
type AttachmentType string

const (
	AttachmentLog        AttachmentType = "log"
	AttachmentDiff       AttachmentType = "diff"
	AttachmentScreenshot AttachmentType = "screenshot"
	AttachmentReport     AttachmentType = "report"
	AttachmentArchive    AttachmentType = "archive"
	AttachmentOther      AttachmentType = "other"
)

func (t AttachmentType) isValid() bool {
	switch t {
	case AttachmentLog, AttachmentDiff, AttachmentScreenshot, AttachmentReport, AttachmentArchive, AttachmentOther:
		return true
	default:
		return false
	}
}

// EvidenceAttachment is one durable record of an artifact relevant to a
// task.
type EvidenceAttachment struct {
	ID           string         `json:"id"`
	Type         AttachmentType `json:"type"`
	ArtifactPath string         `json:"artifact_path"`
	SHA256       string         `json:"sha256"`
	SizeBytes    int64          `json:"size_bytes"`
	CreatedAt    string         `json:"created_at"`
	Description  string         `json:"description,omitempty"`
	Compressed   bool           `json:"compressed,omitempty"`
}

type evidenceIndex struct {
	Attachments []EvidenceAttachment `json:"attachments"`
}

func (s *Store) evidenceIndexPath(taskID string) string {
	return filepath.Join(s.evidenceDir(taskID), "index.json")
}

// AttachEvidence copies (or, for files over sizeCeiling, hands off to a
// compressor) path into the task's evidence tree and records it in the
// index. Re-attaching identical content is idempotent: the attachment id
// is derived from the content SHA.
func (s *Store) AttachEvidence(taskID, path string, attType AttachmentType, description string, sizeCeiling int64, compress func(src, dst string) error) (*EvidenceAttachment, error) {
	if !attType.isValid() {
		return nil, taskerr.Newf(taskerr.KindValidation, "invalid evidence type %q", attType)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindIO, "stat evidence artifact", err)
	}
	if sizeCeiling <= 0 {
		sizeCeiling = DefaultEvidenceSizeCeiling
	}

	sha, size, err := hashArtifact(path, info)
	if err != nil {
		return nil, err
	}
	id := sha
	if len(id) > 12 {
		id = id[:12]
	}

	var attachment *EvidenceAttachment
	err = s.withLock(func() error {
		idx, _ := s.readEvidenceIndex(taskID)
		for _, existing := range idx.Attachments {
			if existing.ID == id {
				attachment = &existing
				return nil
			}
		}

		needsCompress := info.IsDir() || size > sizeCeiling
		destName := id + "-" + filepath.Base(path)
		if needsCompress {
			destName += ".tar.gz"
		}
		dest := filepath.Join(s.evidenceDir(taskID), destName)

		if needsCompress {
			if compress == nil {
				return taskerr.New(taskerr.KindIO, "artifact requires compression but no compressor was provided")
			}
			if err := compress(path, dest); err != nil {
				return taskerr.Wrap(taskerr.KindIO, "compress evidence artifact", err)
			}
		} else {
			if err := copyFile(path, dest); err != nil {
				return taskerr.Wrap(taskerr.KindIO, "copy evidence artifact", err)
			}
		}

		att := EvidenceAttachment{
			ID:           id,
			Type:         attType,
			ArtifactPath: filepath.Join("evidence", destName),
			SHA256:       sha,
			SizeBytes:    size,
			CreatedAt:    nowRFC3339(),
			Description:  description,
			Compressed:   needsCompress,
		}
		idx.Attachments = append(idx.Attachments, att)
		if err := s.writeEvidenceIndex(taskID, idx); err != nil {
			return err
		}
		attachment = &att
		return nil
	})
	return attachment, err
}

// ListEvidence returns a task's attachments sorted by creation time.
func (s *Store) ListEvidence(taskID string) ([]EvidenceAttachment, error) {
	var out []EvidenceAttachment
	err := s.withLock(func() error {
		idx, err := s.readEvidenceIndex(taskID)
		if err != nil {
			return err
		}
		out = append(out, idx.Attachments...)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, err
}

func (s *Store) readEvidenceIndex(taskID string) (*evidenceIndex, error) {
	data, err := os.ReadFile(s.evidenceIndexPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return &evidenceIndex{}, nil
		}
		return nil, taskerr.Wrap(taskerr.KindIO, "read evidence index", err)
	}
	var idx evidenceIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, taskerr.Wrap(taskerr.KindValidation, "parse evidence index", err)
	}
	return &idx, nil
}

func (s *Store) writeEvidenceIndex(taskID string, idx *evidenceIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return atomicWriteFile(s.evidenceIndexPath(taskID), data, 0644)
}

func hashArtifact(path string, info os.FileInfo) (sha string, size int64, err error) {
	if info.IsDir() {
		// Directory content hashing is delegated to the compressor step;
		// here we hash the canonical path + mod time as a stable-enough
		// identity for idempotent re-attachment of the same directory.
		h := sha256.New()
		h.Write([]byte(path))
		return hex.EncodeToString(h.Sum(nil)), 0, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", 0, taskerr.Wrap(taskerr.KindIO, "open evidence artifact", err)
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, taskerr.Wrap(taskerr.KindIO, "hash evidence artifact", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
