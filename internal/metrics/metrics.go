package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the kernel's prometheus collectors. A nil *Metrics is
// valid and turns every method into a no-op, so tests can pass nil.
type Metrics struct {
	jobsRunning    prometheus.Gauge
	jobsTotal      *prometheus.CounterVec
	toolExecutions *prometheus.CounterVec
	planSteps      *prometheus.CounterVec
}

// New registers the kernel collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "curunir_jobs_running",
			Help: "Number of workflow jobs currently executing.",
		}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curunir_jobs_total",
			Help: "Finished workflow jobs by terminal status.",
		}, []string{"status"}),
		toolExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curunir_tool_executions_total",
			Help: "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		planSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curunir_plan_steps_total",
			Help: "Planner steps executed by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.jobsRunning, m.jobsTotal, m.toolExecutions, m.planSteps)
	return m
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsRunning.Inc()
}

func (m *Metrics) JobRunningDone() {
	if m == nil {
		return
	}
	m.jobsRunning.Dec()
}

func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ToolExecuted(tool string, success bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.toolExecutions.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) PlanStep(outcome string) {
	if m == nil {
		return
	}
	m.planSteps.WithLabelValues(outcome).Inc()
}
