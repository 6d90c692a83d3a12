package domain

import (
	"fmt"
	"time"
)

type PlanStatus string

const (
	PlanStatusPending   PlanStatus = "pending"
	PlanStatusRunning   PlanStatus = "running"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusFailed    PlanStatus = "failed"
)

type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// Step is one tool invocation within a plan. Inputs may contain literal
// values or "$variable" references into the plan context; the result of
// the tool is stored back into the context under OutputVariable.
type Step struct {
	StepNumber     int            `json:"step_number"`
	ToolName       string         `json:"tool_name"`
	Description    string         `json:"description"`
	Inputs         map[string]any `json:"inputs"`
	OutputVariable string         `json:"output_variable"`
	Status         StepStatus     `json:"status"`
	Result         map[string]any `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// Plan is an ordered sequence of steps plus the shared context threaded
// through their execution. It is ephemeral: one plan per Planner.Execute
// call, owned by that call stack and discarded afterwards.
type Plan struct {
	Goal      string         `json:"goal"`
	Steps     []Step         `json:"steps"`
	Context   map[string]any `json:"context"`
	Status    PlanStatus     `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// PlanParseStage identifies which decode attempt on the LLM response
// failed: the strict JSON parse or the best-effort recovery extraction.
// Keeping the stages distinct preserves diagnosability.
type PlanParseStage string

const (
	PlanParseDecode  PlanParseStage = "decode"
	PlanParseRecover PlanParseStage = "recover"
)

// PlanParseError reports an LLM response that could not be turned into a
// plan, carrying a truncated excerpt of the raw text for diagnosis.
type PlanParseError struct {
	Stage PlanParseStage
	Raw   string
}

func (e *PlanParseError) Error() string {
	return fmt.Sprintf("llm returned invalid plan JSON (%s): %s...", e.Stage, e.Raw)
}

// PlanValidationError reports a plan rejected before execution. Step is
// 0 for plan-level violations (e.g. zero steps).
type PlanValidationError struct {
	Step   int
	Reason string
}

func (e *PlanValidationError) Error() string {
	if e.Step == 0 {
		return "invalid plan: " + e.Reason
	}
	return fmt.Sprintf("invalid plan: step %d: %s", e.Step, e.Reason)
}

// VariableNotFoundError reports a "$variable" input reference that has
// no value in the plan context at resolution time.
type VariableNotFoundError struct {
	Variable string
	Step     int
}

func (e *VariableNotFoundError) Error() string {
	return fmt.Sprintf("step %d: variable '%s' not found in context", e.Step, e.Variable)
}
