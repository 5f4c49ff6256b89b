package contextstore

// ManifestSchemaVersion is bumped whenever context.manifest's shape
// changes, independently of SchemaVersion (context.json's own version).
const ManifestSchemaVersion = 1

// SourceFilePurpose tags why a file contributed to a context's immutable
// section.
type SourceFilePurpose string

const (
	PurposeTaskYAML          SourceFilePurpose = "task_yaml"
	PurposeStandardsCitation SourceFilePurpose = "standards_citation"
)

// SourceFile is one provenance entry in context.manifest.
type SourceFile struct {
	Path    string            `json:"path"`
	SHA256  string            `json:"sha256"`
	Purpose SourceFilePurpose `json:"purpose"`
}

// ContextManifest records, for every file that contributed to a context's
// immutable section, enough provenance to detect drift and support a
// rebuild.
type ContextManifest struct {
	Version              int          `json:"version"`
	ContextSchemaVersion int          `json:"context_schema_version"`
	SourceFiles          []SourceFile `json:"source_files"`
}

// NewManifest builds a manifest for the given source files.
func NewManifest(sourceFiles []SourceFile) *ContextManifest {
	return &ContextManifest{
		Version:              ManifestSchemaVersion,
		ContextSchemaVersion: SchemaVersion,
		SourceFiles:          sourceFiles,
	}
}
