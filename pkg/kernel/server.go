package kernel

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/manthysbr/curunir/internal/core/domain"
	"github.com/manthysbr/curunir/internal/core/services"
)

// Server exposes the kernel over HTTP: mini app discovery and launch,
// job inspection and control, tool catalogue, artifact download.
type Server struct {
	logger    *slog.Logger
	store     *services.JobStore
	runner    *services.JobRunner
	miniApps  *services.MiniAppRegistry
	tools     *domain.ToolRegistry
	artifacts *services.ArtifactManager
	registry  *prometheus.Registry
}

func NewServer(
	logger *slog.Logger,
	store *services.JobStore,
	runner *services.JobRunner,
	miniApps *services.MiniAppRegistry,
	tools *domain.ToolRegistry,
	artifacts *services.ArtifactManager,
	registry *prometheus.Registry,
) *Server {
	return &Server{
		logger:    logger,
		store:     store,
		runner:    runner,
		miniApps:  miniApps,
		tools:     tools,
		artifacts: artifacts,
		registry:  registry,
	}
}

// Handler returns the http.Handler with all API routes mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/miniapps", s.handleListMiniApps)
	mux.HandleFunc("POST /api/miniapps/{id}/run", s.handleRunMiniApp)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleDeleteJob)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancelJob)
	mux.HandleFunc("GET /api/jobs/{id}/artifacts/{filename}", s.handleDownloadArtifact)
	mux.HandleFunc("GET /api/tools", s.handleListTools)

	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListMiniApps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"miniapps": s.miniApps.List()})
}

type runRequest struct {
	Input   map[string]any `json:"input"`
	Variant int            `json:"variant"`
	Options map[string]any `json:"options"`
}

func (s *Server) handleRunMiniApp(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("id")
	app, ok := s.miniApps.Get(appID)
	if !ok {
		writeError(w, http.StatusNotFound, "mini app '"+appID+"' not found")
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Variant == 0 {
		req.Variant = 1
	}

	job := s.store.Create(appID, req.Input, req.Variant, req.Options)
	s.runner.Submit(job, app.Run)

	s.logger.Info("job submitted", "job_id", job.ID, "miniapp", appID, "variant", req.Variant)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.store.List(r.URL.Query().Get("miniapp"))
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, toJobView(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.store.Get(domain.JobID(r.PathValue("id")))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, toJobView(job))
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := domain.JobID(r.PathValue("id"))
	job, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status == domain.JobStatusRunning {
		writeError(w, http.StatusConflict, "cannot delete a running job, cancel it first")
		return
	}
	s.store.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := domain.JobID(r.PathValue("id"))
	err := s.runner.Cancel(id)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrJobNotRunning):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{"job_id": id, "cancelling": true})
	}
}

func (s *Server) handleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	id := domain.JobID(r.PathValue("id"))
	filename := r.PathValue("filename")

	job, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	// Only paths recorded on the job are served.
	var artifact *domain.Artifact
	for i := range job.Artifacts {
		if pathBase(job.Artifacts[i].Path) == filename {
			artifact = &job.Artifacts[i]
			break
		}
	}
	if artifact == nil {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}

	full, err := s.artifacts.Resolve(artifact.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	http.ServeFile(w, r, full)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.tools.Describe()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func pathBase(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return p[i+1:]
		}
	}
	return p
}
