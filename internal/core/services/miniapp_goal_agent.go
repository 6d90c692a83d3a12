package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manthysbr/curunir/internal/core/domain"
)

// GoalAgentApp runs an arbitrary goal through the planner: the LLM
// decomposes the goal into tool invocations and the steps execute in
// order. Input: goal (required), context (object), allowed_tools
// (list, empty means every registered tool), max_steps (default 5).
type GoalAgentApp struct {
	logger  *slog.Logger
	planner *Planner
}

func NewGoalAgentApp(logger *slog.Logger, planner *Planner) *GoalAgentApp {
	return &GoalAgentApp{logger: logger, planner: planner}
}

func (a *GoalAgentApp) Metadata() domain.MiniAppMetadata {
	return domain.MiniAppMetadata{
		ID:          "goal_agent",
		Name:        "Goal Agent",
		Description: "Plans and executes an arbitrary goal using the registered tools",
		Version:     "1.0.0",
		Variants:    map[int]string{1: "Standard"},
	}
}

func (a *GoalAgentApp) Run(ctx context.Context, job *domain.Job, logf LogFunc) (map[string]any, error) {
	if err := validateVariant(a.Metadata(), job.Variant); err != nil {
		return nil, err
	}

	goal, _ := job.Input["goal"].(string)
	if strings.TrimSpace(goal) == "" {
		return nil, fmt.Errorf("input 'goal' is required")
	}

	initialContext, _ := job.Input["context"].(map[string]any)
	allowedTools := stringList(job.Input["allowed_tools"])

	maxSteps := 5
	if n, ok := job.Input["max_steps"].(float64); ok && n > 0 {
		maxSteps = int(n)
	}

	job.SetProgress(0.1, "planning")
	plan, err := a.planner.Execute(ctx, goal, initialContext, allowedTools, maxSteps, logf)
	if err != nil {
		return nil, err
	}

	steps := make([]map[string]any, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		summary := map[string]any{
			"step_number": step.StepNumber,
			"tool":        step.ToolName,
			"description": step.Description,
			"status":      string(step.Status),
		}
		if step.Error != "" {
			summary["error"] = step.Error
		}
		steps = append(steps, summary)
	}

	if plan.Status == domain.PlanStatusFailed {
		for _, step := range plan.Steps {
			if step.Status == domain.StepStatusFailed {
				return nil, fmt.Errorf("step %d (%s) failed: %s", step.StepNumber, step.ToolName, step.Error)
			}
		}
		return nil, fmt.Errorf("plan failed")
	}

	job.SetProgress(0.95, "")
	return map[string]any{
		"goal":    plan.Goal,
		"steps":   steps,
		"outputs": plan.Context,
	}, nil
}
