package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type JobID string

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusComplete  JobStatus = "complete"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status permits no further transition.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusComplete, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotRunning = errors.New("job is not running")
	// ErrJobCancelled is returned by the runner's log callback when the
	// per-job cancellation flag has been set. Workflow bodies must propagate
	// it unchanged so the runner can distinguish cancellation from failure.
	ErrJobCancelled = errors.New("job cancelled")
)

// NewJobID allocates an opaque job identifier of the form job_<12 hex>.
func NewJobID() JobID {
	return JobID("job_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// Job is the record of one tracked asynchronous workflow execution.
// It is owned by the JobStore; all concurrent access goes through the
// store's synchronized API, never through shared pointers.
type Job struct {
	ID          JobID          `json:"job_id"`
	MiniAppID   string         `json:"miniapp_id"`
	Status      JobStatus      `json:"status"`
	Progress    float64        `json:"progress"`
	CurrentStep string         `json:"current_step,omitempty"`
	Logs        []string       `json:"logs"`
	Artifacts   []Artifact     `json:"artifacts"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	Variant     int            `json:"variant"`
	Options     map[string]any `json:"options,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// AddLog appends a timestamped log line. Logs are append-only and never
// reordered.
func (j *Job) AddLog(message string) {
	now := time.Now().UTC()
	j.Logs = append(j.Logs, fmt.Sprintf("[%s] %s", now.Format("15:04:05"), message))
	j.UpdatedAt = now
}

// AddArtifact records an output artifact on the job.
func (j *Job) AddArtifact(a Artifact) {
	j.Artifacts = append(j.Artifacts, a)
	j.UpdatedAt = time.Now().UTC()
}

// SetProgress updates the progress fraction, clamped to [0, 1], and
// optionally the current step label.
func (j *Job) SetProgress(progress float64, step string) {
	j.Progress = min(1.0, max(0.0, progress))
	if step != "" {
		j.CurrentStep = step
	}
	j.UpdatedAt = time.Now().UTC()
}

// Complete marks the job complete with its result map.
func (j *Job) Complete(result map[string]any) {
	now := time.Now().UTC()
	j.Status = JobStatusComplete
	j.Result = result
	j.Progress = 1.0
	j.CurrentStep = ""
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail marks the job failed. The message is the operator-safe summary
// exposed to clients; full diagnostics stay in the server log.
func (j *Job) Fail(errMsg string) {
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.Error = errMsg
	j.CurrentStep = ""
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.AddLog("ERROR: " + errMsg)
}

// Cancel marks the job cancelled.
func (j *Job) Cancel() {
	now := time.Now().UTC()
	j.Status = JobStatusCancelled
	j.CurrentStep = ""
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.AddLog("Job cancelled by user")
}

// Clone returns a deep copy so store snapshots never alias caller state.
func (j *Job) Clone() *Job {
	cp := *j
	cp.Logs = append([]string(nil), j.Logs...)
	cp.Artifacts = append([]Artifact(nil), j.Artifacts...)
	cp.Result = cloneMap(j.Result)
	cp.Input = cloneMap(j.Input)
	cp.Options = cloneMap(j.Options)
	return &cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
