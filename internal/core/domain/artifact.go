package domain

// ArtifactKind tags what an artifact file contains.
type ArtifactKind string

const (
	ArtifactText  ArtifactKind = "text"
	ArtifactJSON  ArtifactKind = "json"
	ArtifactImage ArtifactKind = "image"
	ArtifactVideo ArtifactKind = "video"
	ArtifactCSV   ArtifactKind = "csv"
)

// Artifact is an output file produced by a job. It is immutable once
// created and owned by exactly one job record. Path is relative to the
// configured outputs directory; storage itself is handled by the
// artifact manager, the core only records the reference.
type Artifact struct {
	Kind    ArtifactKind `json:"type"`
	Label   string       `json:"label"`
	Path    string       `json:"path"`
	Preview string       `json:"preview,omitempty"`
}
