package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/manthysbr/curunir/internal/core/domain"
	"github.com/manthysbr/curunir/internal/core/ports"
	"github.com/manthysbr/curunir/internal/metrics"
)

const (
	// Plans must parse as JSON, so generation favours determinism over
	// creativity; the token ceiling is sized for a multi-step plan.
	planTemperature = 0.1
	planMaxTokens   = 2000

	// How much of an unparseable LLM response to keep in the error.
	planRawExcerptLen = 200
)

// planJSONRe finds the first JSON object containing a "steps" key inside
// a response that wrapped the payload in prose or a code fence.
var planJSONRe = regexp.MustCompile(`(?s)\{.*"steps".*\}`)

// Planner turns a high-level goal into a validated, ordered sequence of
// tool invocations and executes them with first-failure-stops semantics.
type Planner struct {
	logger *slog.Logger
	llm    ports.LLMClient
	tools  *domain.ToolRegistry
	met    *metrics.Metrics
}

func NewPlanner(logger *slog.Logger, llm ports.LLMClient, tools *domain.ToolRegistry, met *metrics.Metrics) *Planner {
	return &Planner{logger: logger, llm: llm, tools: tools, met: met}
}

// Execute plans and runs a workflow: generate, validate, then execute
// steps strictly in order. Generation and validation failures are
// returned as errors before any side effect occurs. A step failure is
// recorded on the plan (status failed, execution halted at that step)
// rather than returned, except for cancellation, which propagates so
// the runner can finalize the job as cancelled. Effects of steps that
// already completed are not rolled back.
func (p *Planner) Execute(ctx context.Context, goal string, initialContext map[string]any, allowedTools []string, maxSteps int, logf LogFunc) (*domain.Plan, error) {
	p.logger.Info("planner executing goal", "goal", goal)

	plan, err := p.GeneratePlan(ctx, goal, initialContext, allowedTools, maxSteps)
	if err != nil {
		return nil, err
	}

	if err := p.ValidatePlan(plan, allowedTools); err != nil {
		return nil, err
	}

	plan.Status = domain.PlanStatusRunning

	for i := range plan.Steps {
		step := &plan.Steps[i]
		step.Status = domain.StepStatusRunning

		if err := p.logStep(logf, fmt.Sprintf("Executing step %d: %s", step.StepNumber, step.Description)); err != nil {
			step.Status = domain.StepStatusFailed
			plan.Status = domain.PlanStatusFailed
			return plan, err
		}

		if err := p.executeStep(ctx, plan, step); err != nil {
			step.Status = domain.StepStatusFailed
			step.Error = err.Error()
			plan.Status = domain.PlanStatusFailed
			p.met.PlanStep("error")
			p.logger.Error("plan step failed", "step", step.StepNumber, "tool", step.ToolName, "error", err)

			if errors.Is(err, domain.ErrJobCancelled) {
				return plan, err
			}
			// First failure stops the plan; no retry, no rollback.
			return plan, nil
		}

		step.Status = domain.StepStatusCompleted
		p.met.PlanStep("ok")
	}

	plan.Status = domain.PlanStatusCompleted
	return plan, nil
}

func (p *Planner) executeStep(ctx context.Context, plan *domain.Plan, step *domain.Step) error {
	// Validation checked registration, but the registry is shared and
	// mutable between then and now.
	tool, ok := p.tools.GetTool(step.ToolName)
	if !ok {
		return fmt.Errorf("tool %s: %w", step.ToolName, domain.ErrToolNotFound)
	}

	resolved, err := resolveInputs(step.Inputs, plan.Context, step.StepNumber)
	if err != nil {
		return err
	}

	if err := tool.ValidateInputs(resolved); err != nil {
		return fmt.Errorf("tool %s: %w", step.ToolName, err)
	}

	result := tool.Execute(ctx, resolved)
	p.met.ToolExecuted(step.ToolName, result.Success)
	if !result.Success {
		return fmt.Errorf("tool %s failed: %s", step.ToolName, result.Error)
	}

	// Last writer wins when an output variable name is reused.
	plan.Context[step.OutputVariable] = result.Outputs
	step.Result = result.Outputs
	return nil
}

func (p *Planner) logStep(logf LogFunc, message string) error {
	if logf == nil {
		return nil
	}
	return logf(message)
}

// GeneratePlan asks the LLM to decompose the goal into steps and
// materializes the parsed response into a plan. The plan context is a
// copy of the initial context: execution mutates it, and callers may
// reuse their map elsewhere.
func (p *Planner) GeneratePlan(ctx context.Context, goal string, initialContext map[string]any, allowedTools []string, maxSteps int) (*domain.Plan, error) {
	prompt := p.buildPlanningPrompt(goal, initialContext, allowedTools, maxSteps)

	p.logger.Info("generating execution plan", "goal", goal, "max_steps", maxSteps)
	response, err := p.llm.Complete(ctx, prompt, planMaxTokens, planTemperature)
	if err != nil {
		return nil, fmt.Errorf("plan generation: %w", err)
	}

	parsed, err := p.parsePlanResponse(response)
	if err != nil {
		return nil, err
	}

	steps := make([]domain.Step, 0, len(parsed.Steps))
	for _, s := range parsed.Steps {
		inputs := s.Inputs
		if inputs == nil {
			inputs = map[string]any{}
		}
		steps = append(steps, domain.Step{
			StepNumber:     s.StepNumber,
			ToolName:       s.ToolName,
			Description:    s.Description,
			Inputs:         inputs,
			OutputVariable: s.OutputVariable,
			Status:         domain.StepStatusPending,
		})
	}

	contextCopy := make(map[string]any, len(initialContext))
	for k, v := range initialContext {
		contextCopy[k] = v
	}

	p.logger.Info("plan generated", "steps", len(steps))
	return &domain.Plan{
		Goal:      goal,
		Steps:     steps,
		Context:   contextCopy,
		Status:    domain.PlanStatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type planResponse struct {
	Steps []planStep `json:"steps"`
}

type planStep struct {
	StepNumber     int            `json:"step_number"`
	ToolName       string         `json:"tool_name"`
	Description    string         `json:"description"`
	Inputs         map[string]any `json:"inputs"`
	OutputVariable string         `json:"output_variable"`
}

// parsePlanResponse is a two-stage decode: a strict JSON parse, then a
// best-effort extraction of the first object containing a "steps" key.
// The two failure paths surface as distinct parse stages.
func (p *Planner) parsePlanResponse(response string) (*planResponse, error) {
	var parsed planResponse
	if err := json.Unmarshal([]byte(response), &parsed); err == nil {
		return &parsed, nil
	}

	p.logger.Warn("strict plan parse failed, attempting JSON extraction")
	match := planJSONRe.FindString(response)
	if match == "" {
		return nil, &domain.PlanParseError{Stage: domain.PlanParseDecode, Raw: excerpt(response)}
	}
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return nil, &domain.PlanParseError{Stage: domain.PlanParseRecover, Raw: excerpt(response)}
	}

	p.logger.Info("recovered plan JSON from wrapped response")
	return &parsed, nil
}

func excerpt(s string) string {
	if len(s) > planRawExcerptLen {
		return s[:planRawExcerptLen]
	}
	return s
}

// ValidatePlan rejects a plan before any step executes. Violations are
// reported with the offending step number for diagnosability.
func (p *Planner) ValidatePlan(plan *domain.Plan, allowedTools []string) error {
	if len(plan.Steps) == 0 {
		return &domain.PlanValidationError{Reason: "plan has no steps"}
	}

	allowed := make(map[string]struct{}, len(allowedTools))
	for _, name := range allowedTools {
		allowed[name] = struct{}{}
	}

	for _, step := range plan.Steps {
		if len(allowed) > 0 {
			if _, ok := allowed[step.ToolName]; !ok {
				return &domain.PlanValidationError{
					Step:   step.StepNumber,
					Reason: fmt.Sprintf("tool '%s' not in allowed tools %v", step.ToolName, allowedTools),
				}
			}
		}
		if _, ok := p.tools.GetTool(step.ToolName); !ok {
			return &domain.PlanValidationError{
				Step:   step.StepNumber,
				Reason: fmt.Sprintf("tool '%s' not registered", step.ToolName),
			}
		}
		if step.Inputs == nil {
			return &domain.PlanValidationError{Step: step.StepNumber, Reason: "inputs must be a map"}
		}
		if step.OutputVariable == "" {
			return &domain.PlanValidationError{Step: step.StepNumber, Reason: "output_variable is required"}
		}
	}
	return nil
}

// resolveInputs substitutes "$variable" references from the context.
// Resolution is shallow: only top-level string values are inspected,
// values nested inside arrays or objects pass through untouched. A
// reference to a variable not yet in the context fails here, at
// resolution time, which is the only place forward references are
// detected.
func resolveInputs(inputs, context map[string]any, stepNumber int) (map[string]any, error) {
	resolved := make(map[string]any, len(inputs))
	for key, value := range inputs {
		str, ok := value.(string)
		if !ok || !strings.HasPrefix(str, "$") {
			resolved[key] = value
			continue
		}

		varName := str[1:]
		val, ok := context[varName]
		if !ok {
			return nil, &domain.VariableNotFoundError{Variable: varName, Step: stepNumber}
		}
		resolved[key] = val
	}
	return resolved, nil
}

// buildPlanningPrompt renders the single generation prompt: goal,
// pretty-printed initial context, the restricted tool catalogue, the
// step ceiling, and a strict JSON-only output instruction.
func (p *Planner) buildPlanningPrompt(goal string, initialContext map[string]any, allowedTools []string, maxSteps int) string {
	var catalogue strings.Builder
	allowed := make(map[string]struct{}, len(allowedTools))
	for _, name := range allowedTools {
		allowed[name] = struct{}{}
	}
	for _, name := range p.tools.ListTools() {
		if len(allowed) > 0 {
			if _, ok := allowed[name]; !ok {
				continue
			}
		}
		tool, _ := p.tools.GetTool(name)
		fmt.Fprintf(&catalogue, "- %s: %s\n", tool.Name, tool.Description)
	}

	contextJSON, err := json.MarshalIndent(initialContext, "", "  ")
	if err != nil {
		contextJSON = []byte("{}")
	}

	return fmt.Sprintf(`You are a workflow planner that generates ONLY valid JSON output.

GOAL: %s

AVAILABLE CONTEXT:
%s

AVAILABLE TOOLS:
%s
INSTRUCTIONS:
1. Break down the goal into sequential steps (max %d steps)
2. Each step uses exactly ONE tool from available tools
3. Reference context variables using "$variable_name"
4. Output variable names should be descriptive

CRITICAL: You must respond with ONLY a valid JSON object, no other text.

OUTPUT FORMAT:
{
  "steps": [
    {
      "step_number": 1,
      "tool_name": "tool_name_here",
      "description": "What this step accomplishes",
      "inputs": {"param1": "value1", "param2": "$context_variable"},
      "output_variable": "descriptive_output_name"
    }
  ]
}

Respond ONLY with the JSON object, nothing else:`, goal, contextJSON, catalogue.String(), maxSteps)
}
