// Package models holds the data types shared across the enrichment pipeline.
package models

// AnalysisResult is the structured metadata produced by a vision model for
// one clip. All fields are optional; an absent field means the model had
// nothing to say, not an error. JSON tags match the schema sent to the
// providers, so a decoded response maps straight onto this struct.
type AnalysisResult struct {
	ShotID    string   `json:"shot_id,omitempty"`
	ShortDesc string   `json:"short_desc,omitempty"`
	LongDesc  string   `json:"long_desc,omitempty"`
	Subjects  []string `json:"subjects,omitempty"`
	Actions   []string `json:"actions,omitempty"`
	Camera    string   `json:"camera,omitempty"`
	Lighting  string   `json:"lighting,omitempty"`
	Setting   string   `json:"setting,omitempty"`
	Emotion   string   `json:"emotion,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
}

// Empty reports whether the result carries no usable content at all.
func (r AnalysisResult) Empty() bool {
	return r.ShortDesc == "" && r.LongDesc == "" && r.Camera == "" &&
		r.Lighting == "" && r.Setting == "" && r.Emotion == "" &&
		len(r.Subjects) == 0 && len(r.Actions) == 0 && len(r.Keywords) == 0
}

// MediaLocation is a resolved, locally readable media path. IsProxy is true
// when the path points at a lower-resolution stand-in rather than the
// nominal source file.
type MediaLocation struct {
	Path    string
	IsProxy bool
}

// ClipRef is a handle to one unit of footage owned by the host application.
// The pipeline never creates or destroys clips; it only reads the nominal
// paths and reads/writes the string metadata bag.
type ClipRef interface {
	// Name returns the display name of the clip.
	Name() string

	// SourcePath returns the nominal path of the source media file.
	SourcePath() string

	// LinkedProxyPath returns the proxy path the host has already linked to
	// this clip, or "" when none is linked.
	LinkedProxyPath() string

	// Metadata returns the value of one metadata field, "" when unset.
	Metadata(key string) string

	// SetMetadata applies a sparse set of field writes. Fields not present
	// in the map are left untouched.
	SetMetadata(fields map[string]string) error
}

// ProviderConfig is the per-run analysis configuration. It is supplied once
// per batch and never mutated during the run.
type ProviderConfig struct {
	Provider   string
	Model      string
	APIKey     string
	FrameCount int
}

// Metadata field names written by the merger. The host passes these through
// opaquely; they match Resolve-style clip property names.
const (
	FieldDescription = "Description"
	FieldKeywords    = "Keywords"
	FieldComments    = "Comments"
	FieldShot        = "Shot"
	FieldScene       = "Scene"
)
