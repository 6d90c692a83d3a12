package domain

// MiniAppMetadata describes a mini app: a self-contained workflow that
// composes tools, prompts and business logic behind one entry point.
type MiniAppMetadata struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Version     string         `json:"version"`
	Tags        []string       `json:"tags,omitempty"`
	Variants    map[int]string `json:"variants,omitempty"`
}
