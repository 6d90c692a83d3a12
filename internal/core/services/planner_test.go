package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/curunir/internal/core/domain"
	"github.com/manthysbr/curunir/internal/core/ports"
)

// fakeLLM returns canned responses in order and records prompts.
type fakeLLM struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func (f *fakeLLM) Chat(ctx context.Context, messages []ports.ChatMessage, maxTokens int, temperature float64) (string, error) {
	return f.Complete(ctx, messages[len(messages)-1].Content, maxTokens, temperature)
}

const validPlanJSON = `{
  "steps": [
    {
      "step_number": 1,
      "tool_name": "fetch",
      "description": "Fetch the page",
      "inputs": {"url": "$listing_url"},
      "output_variable": "page"
    },
    {
      "step_number": 2,
      "tool_name": "summarize",
      "description": "Summarize the page",
      "inputs": {"text": "$page"},
      "output_variable": "summary"
    }
  ]
}`

func plannerWithTools(t *testing.T, llm ports.LLMClient, tools ...*domain.Tool) *Planner {
	t.Helper()
	reg := domain.NewToolRegistry()
	for _, tool := range tools {
		require.NoError(t, reg.Register(tool))
	}
	return NewPlanner(testLogger(), llm, reg, nil)
}

func recordingTool(name string, calls *[]map[string]any, outputs map[string]any) *domain.Tool {
	return &domain.Tool{
		Name:        name,
		Description: name + " tool",
		Execute: func(ctx context.Context, inputs map[string]any) domain.ToolResult {
			if calls != nil {
				*calls = append(*calls, inputs)
			}
			return domain.ToolResult{Success: true, Outputs: outputs}
		},
	}
}

func TestPlanner_GeneratePlan_StrictParse(t *testing.T) {
	llm := &fakeLLM{responses: []string{validPlanJSON}}
	p := plannerWithTools(t, llm, recordingTool("fetch", nil, nil), recordingTool("summarize", nil, nil))

	plan, err := p.GeneratePlan(context.Background(), "summarize a listing",
		map[string]any{"listing_url": "https://example.com"}, nil, 5)
	require.NoError(t, err)

	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "fetch", plan.Steps[0].ToolName)
	assert.Equal(t, "page", plan.Steps[0].OutputVariable)
	assert.Equal(t, domain.StepStatusPending, plan.Steps[0].Status)
	assert.Equal(t, domain.PlanStatusPending, plan.Status)
	assert.Equal(t, "https://example.com", plan.Context["listing_url"])
}

func TestPlanner_GeneratePlan_ContextIsCopied(t *testing.T) {
	llm := &fakeLLM{responses: []string{validPlanJSON}}
	p := plannerWithTools(t, llm, recordingTool("fetch", nil, nil))

	initial := map[string]any{"listing_url": "https://example.com"}
	plan, err := p.GeneratePlan(context.Background(), "goal", initial, nil, 5)
	require.NoError(t, err)

	plan.Context["listing_url"] = "mutated"
	assert.Equal(t, "https://example.com", initial["listing_url"])
}

func TestPlanner_GeneratedPlanSurvivesSerialization(t *testing.T) {
	llm := &fakeLLM{responses: []string{validPlanJSON}}
	p := plannerWithTools(t, llm, recordingTool("fetch", nil, nil), recordingTool("summarize", nil, nil))

	plan, err := p.GeneratePlan(context.Background(), "summarize a listing",
		map[string]any{"listing_url": "https://example.com"}, nil, 5)
	require.NoError(t, err)

	raw, err := json.Marshal(plan)
	require.NoError(t, err)

	var decoded domain.Plan
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, plan.Goal, decoded.Goal)
	assert.Equal(t, plan.Context, decoded.Context)
	require.Len(t, decoded.Steps, len(plan.Steps))
	for i, step := range plan.Steps {
		assert.Equal(t, step.StepNumber, decoded.Steps[i].StepNumber)
		assert.Equal(t, step.ToolName, decoded.Steps[i].ToolName)
		assert.Equal(t, step.Inputs, decoded.Steps[i].Inputs)
		assert.Equal(t, step.OutputVariable, decoded.Steps[i].OutputVariable)
	}
}

func TestPlanner_GeneratePlan_RecoversWrappedJSON(t *testing.T) {
	wrapped := "Sure! Here is the plan you asked for:\n```json\n" + validPlanJSON + "\n```\nLet me know."
	llm := &fakeLLM{responses: []string{wrapped}}
	p := plannerWithTools(t, llm, recordingTool("fetch", nil, nil))

	plan, err := p.GeneratePlan(context.Background(), "goal", nil, nil, 5)
	require.NoError(t, err)
	assert.Len(t, plan.Steps, 2)
}

func TestPlanner_GeneratePlan_ParseErrors(t *testing.T) {
	t.Run("no JSON object at all", func(t *testing.T) {
		llm := &fakeLLM{responses: []string{"I cannot help with that."}}
		p := plannerWithTools(t, llm)

		_, err := p.GeneratePlan(context.Background(), "goal", nil, nil, 5)
		var parseErr *domain.PlanParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, domain.PlanParseDecode, parseErr.Stage)
	})

	t.Run("candidate found but unparsable", func(t *testing.T) {
		llm := &fakeLLM{responses: []string{`prefix {"steps": [{"step_number": }]} suffix`}}
		p := plannerWithTools(t, llm)

		_, err := p.GeneratePlan(context.Background(), "goal", nil, nil, 5)
		var parseErr *domain.PlanParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, domain.PlanParseRecover, parseErr.Stage)
	})
}

func TestPlanner_PromptContainsCatalogueAndGoal(t *testing.T) {
	llm := &fakeLLM{responses: []string{validPlanJSON}}
	fetch := recordingTool("fetch", nil, nil)
	fetch.Description = "Fetches a URL"
	hidden := recordingTool("hidden", nil, nil)
	p := plannerWithTools(t, llm, fetch, hidden)

	_, err := p.GeneratePlan(context.Background(), "my goal here", nil, []string{"fetch"}, 3)
	require.NoError(t, err)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "GOAL: my goal here")
	assert.Contains(t, prompt, "- fetch: Fetches a URL")
	assert.NotContains(t, prompt, "hidden")
	assert.Contains(t, prompt, "max 3 steps")
}

func TestPlanner_ValidatePlan(t *testing.T) {
	p := plannerWithTools(t, &fakeLLM{}, recordingTool("fetch", nil, nil))

	step := func(n int, tool string) domain.Step {
		return domain.Step{
			StepNumber:     n,
			ToolName:       tool,
			Inputs:         map[string]any{},
			OutputVariable: "out",
		}
	}

	t.Run("empty plan", func(t *testing.T) {
		err := p.ValidatePlan(&domain.Plan{}, nil)
		var vErr *domain.PlanValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, 0, vErr.Step)
	})

	t.Run("tool outside allowed list", func(t *testing.T) {
		plan := &domain.Plan{Steps: []domain.Step{step(1, "fetch")}}
		err := p.ValidatePlan(plan, []string{"other"})
		var vErr *domain.PlanValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, 1, vErr.Step)
		assert.Contains(t, vErr.Reason, "fetch")
	})

	t.Run("tool not registered", func(t *testing.T) {
		plan := &domain.Plan{Steps: []domain.Step{step(2, "missing")}}
		err := p.ValidatePlan(plan, nil)
		var vErr *domain.PlanValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, 2, vErr.Step)
	})

	t.Run("missing output variable", func(t *testing.T) {
		s := step(1, "fetch")
		s.OutputVariable = ""
		err := p.ValidatePlan(&domain.Plan{Steps: []domain.Step{s}}, nil)
		var vErr *domain.PlanValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.Reason, "output_variable")
	})

	t.Run("valid plan", func(t *testing.T) {
		plan := &domain.Plan{Steps: []domain.Step{step(1, "fetch")}}
		assert.NoError(t, p.ValidatePlan(plan, []string{"fetch"}))
	})
}

func TestResolveInputs(t *testing.T) {
	planCtx := map[string]any{
		"url":   "https://example.com",
		"count": float64(3),
	}

	t.Run("substitutes top-level references", func(t *testing.T) {
		resolved, err := resolveInputs(map[string]any{
			"target":  "$url",
			"limit":   "$count",
			"literal": "plain string",
			"number":  float64(7),
		}, planCtx, 1)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", resolved["target"])
		assert.Equal(t, float64(3), resolved["limit"])
		assert.Equal(t, "plain string", resolved["literal"])
		assert.Equal(t, float64(7), resolved["number"])
	})

	t.Run("nested references pass through untouched", func(t *testing.T) {
		resolved, err := resolveInputs(map[string]any{
			"nested": map[string]any{"inner": "$url"},
			"list":   []any{"$url"},
		}, planCtx, 1)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"inner": "$url"}, resolved["nested"])
		assert.Equal(t, []any{"$url"}, resolved["list"])
	})

	t.Run("unknown variable fails with step number", func(t *testing.T) {
		_, err := resolveInputs(map[string]any{"x": "$missing"}, planCtx, 4)
		var vErr *domain.VariableNotFoundError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "missing", vErr.Variable)
		assert.Equal(t, 4, vErr.Step)
	})
}

func TestPlanner_Execute_EndToEnd(t *testing.T) {
	var fetchCalls, sumCalls []map[string]any
	fetch := recordingTool("fetch", &fetchCalls, map[string]any{"content": "page text"})
	summarize := recordingTool("summarize", &sumCalls, map[string]any{"summary": "short"})

	llm := &fakeLLM{responses: []string{validPlanJSON}}
	p := plannerWithTools(t, llm, fetch, summarize)

	var logged []string
	logf := func(msg string) error {
		logged = append(logged, msg)
		return nil
	}

	plan, err := p.Execute(context.Background(), "summarize listing",
		map[string]any{"listing_url": "https://example.com"}, nil, 5, logf)
	require.NoError(t, err)

	assert.Equal(t, domain.PlanStatusCompleted, plan.Status)
	require.Len(t, fetchCalls, 1)
	assert.Equal(t, "https://example.com", fetchCalls[0]["url"])

	// step 2 received step 1's output through the context
	require.Len(t, sumCalls, 1)
	assert.Equal(t, map[string]any{"content": "page text"}, sumCalls[0]["text"])

	assert.Equal(t, map[string]any{"summary": "short"}, plan.Context["summary"])
	for _, step := range plan.Steps {
		assert.Equal(t, domain.StepStatusCompleted, step.Status)
	}
	require.Len(t, logged, 2)
	assert.Contains(t, logged[0], "Executing step 1")
}

func TestPlanner_Execute_FirstFailureStops(t *testing.T) {
	var sumCalls []map[string]any
	failing := &domain.Tool{
		Name:        "fetch",
		Description: "always fails",
		Execute: func(ctx context.Context, inputs map[string]any) domain.ToolResult {
			return domain.ToolFailure("connection refused")
		},
	}
	summarize := recordingTool("summarize", &sumCalls, nil)

	llm := &fakeLLM{responses: []string{validPlanJSON}}
	p := plannerWithTools(t, llm, failing, summarize)

	plan, err := p.Execute(context.Background(), "goal",
		map[string]any{"listing_url": "https://example.com"}, nil, 5, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.PlanStatusFailed, plan.Status)
	assert.Equal(t, domain.StepStatusFailed, plan.Steps[0].Status)
	assert.Contains(t, plan.Steps[0].Error, "connection refused")
	assert.Equal(t, domain.StepStatusPending, plan.Steps[1].Status)
	assert.Empty(t, sumCalls, "execution must halt at the first failure")
}

func TestPlanner_Execute_CancellationPropagates(t *testing.T) {
	fetch := recordingTool("fetch", nil, map[string]any{"content": "x"})
	summarize := recordingTool("summarize", nil, nil)
	llm := &fakeLLM{responses: []string{validPlanJSON}}
	p := plannerWithTools(t, llm, fetch, summarize)

	calls := 0
	logf := func(msg string) error {
		calls++
		if calls > 1 {
			return domain.ErrJobCancelled
		}
		return nil
	}

	plan, err := p.Execute(context.Background(), "goal",
		map[string]any{"listing_url": "https://example.com"}, nil, 5, logf)
	require.ErrorIs(t, err, domain.ErrJobCancelled)
	assert.Equal(t, domain.PlanStatusFailed, plan.Status)
}

func TestPlanner_Execute_ValidationFailsBeforeSideEffects(t *testing.T) {
	var calls []map[string]any
	fetch := recordingTool("fetch", &calls, nil)

	planJSON := `{"steps": [{"step_number": 1, "tool_name": "forbidden", "description": "d", "inputs": {}, "output_variable": "o"}]}`
	llm := &fakeLLM{responses: []string{planJSON}}
	p := plannerWithTools(t, llm, fetch)

	_, err := p.Execute(context.Background(), "goal", nil, []string{"fetch"}, 5, nil)
	var vErr *domain.PlanValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Empty(t, calls)
}
