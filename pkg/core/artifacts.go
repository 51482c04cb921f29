// Package core provides the execution model types for a11y-runner.
package core

// Attachment represents a debug artifact captured during step execution
type Attachment struct {
	Name        string `json:"name"`           // Descriptive name: snapshot, tree
	ContentType string `json:"contentType"`    // MIME type: application/json, text/plain
	Path        string `json:"path,omitempty"` // File path relative to output directory
	Body        []byte `json:"-"`              // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentSnapshot = "snapshot"
	AttachmentTree     = "tree"
)

// Common content types
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// NewSnapshotAttachment wraps a diagnostic snapshot (visible nodes grouped by role).
func NewSnapshotAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentSnapshot,
		ContentType: ContentTypeJSON,
		Path:        path,
		Body:        data,
	}
}

// NewTreeAttachment wraps a plain-text dump of the accessibility tree.
func NewTreeAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentTree,
		ContentType: ContentTypeText,
		Path:        path,
		Body:        data,
	}
}

// ArtifactConfig controls when artifacts are captured
type ArtifactConfig struct {
	CaptureOnFailure bool `yaml:"captureOnFailure" json:"captureOnFailure"` // Default: true
	CaptureOnSuccess bool `yaml:"captureOnSuccess" json:"captureOnSuccess"` // Default: false
	Snapshot         bool `yaml:"snapshot" json:"snapshot"`                 // Default: true
}

// DefaultArtifactConfig returns sensible defaults for artifact capture
func DefaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		CaptureOnFailure: true,
		CaptureOnSuccess: false,
		Snapshot:         true,
	}
}

// ShouldCapture returns true if artifacts should be captured for the given status
func (c ArtifactConfig) ShouldCapture(status StepStatus) bool {
	if !c.Snapshot {
		return false
	}
	switch status {
	case StatusFailed, StatusErrored:
		return c.CaptureOnFailure
	case StatusPassed:
		return c.CaptureOnSuccess
	default:
		return false
	}
}
