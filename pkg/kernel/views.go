package kernel

import (
	"time"

	"github.com/manthysbr/curunir/internal/core/domain"
)

// jobView is the externalized job record: a client polling it can
// render current status, live logs, progress and final outputs.
type jobView struct {
	ID          domain.JobID      `json:"id"`
	MiniAppID   string            `json:"miniapp_id"`
	Status      domain.JobStatus  `json:"status"`
	Progress    float64           `json:"progress"`
	CurrentStep string            `json:"current_step,omitempty"`
	Variant     int               `json:"variant"`
	Logs        []string          `json:"logs"`
	Artifacts   []domain.Artifact `json:"artifacts"`
	Result      map[string]any    `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

func toJobView(job *domain.Job) jobView {
	return jobView{
		ID:          job.ID,
		MiniAppID:   job.MiniAppID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Variant:     job.Variant,
		Logs:        job.Logs,
		Artifacts:   job.Artifacts,
		Result:      job.Result,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	}
}
