package ports

import (
	"context"

	"github.com/manthysbr/curunir/internal/core/domain"
)

// ChatMessage is one turn of a chat-style generation request.
type ChatMessage struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// LLMClient abstracts the text-generation backend (Ollama, LM Studio,
// any OpenAI-compatible API). Implementations retry transparently on
// transient failure up to their configured bound and surface the last
// error after exhausting retries.
type LLMClient interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
	Chat(ctx context.Context, messages []ChatMessage, maxTokens int, temperature float64) (string, error)
}

// ArtifactStore persists artifact files keyed by job ID and filename and
// returns the storage-relative path the core records on the job.
type ArtifactStore interface {
	SaveText(jobID domain.JobID, filename, content string) (string, error)
	SaveJSON(jobID domain.JobID, filename string, data any) (string, error)
	SaveCSV(jobID domain.JobID, filename string, header []string, rows [][]string) (string, error)
}

// RawListing is a scraped listing page before classification.
type RawListing struct {
	ID         int64
	Source     string
	ExternalID string
	URL        string
	Content    string
	ScrapedAt  string
	Status     string
}

// Lead is a validated private-seller contact extracted from a listing.
type Lead struct {
	ID           int64
	RawListingID int64
	IsPrivate    bool
	Confidence   float64
	ContactName  string
	ContactPhone string
	Notes        string
	Status       string // new | exported
}

// LeadStore persists market scraper listings and leads.
type LeadStore interface {
	SaveRawListing(ctx context.Context, l RawListing) (int64, error)
	SaveLead(ctx context.Context, lead Lead) (int64, error)
	ListLeads(ctx context.Context, status string) ([]Lead, error)
	MarkExported(ctx context.Context, ids []int64) error
	Close() error
}
