package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var ErrToolNotFound = errors.New("tool not found")

// Schema is a structural description of a tool's input or output map:
// required field names plus per-field primitive types. It is a small
// subset of JSON Schema, enough for pre-execution validation and for
// rendering tool catalogues into planning prompts.
type Schema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required,omitempty"`
}

// Validate checks presence of required fields and primitive type
// compatibility. Tools may do further semantic validation internally.
func (s Schema) Validate(inputs map[string]any) error {
	for _, field := range s.Required {
		if _, ok := inputs[field]; !ok {
			return fmt.Errorf("missing required field: %s", field)
		}
	}

	for field, value := range inputs {
		def, ok := s.Properties[field].(map[string]any)
		if !ok {
			continue
		}
		expected, ok := def["type"].(string)
		if !ok {
			continue
		}
		if !typeMatches(value, expected) {
			return fmt.Errorf("invalid type for %s: expected %s", field, expected)
		}
	}
	return nil
}

func typeMatches(value any, expected string) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			// JSON numbers decode to float64; accept integral values.
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	}
	return true
}

// ToolResult is the uniform result contract for every tool invocation.
// Expected failure modes are reported via Success=false plus Error;
// a tool never lets a transport error escape as a raw failure.
type ToolResult struct {
	Success  bool           `json:"success"`
	Outputs  map[string]any `json:"outputs,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ToolFailure builds a failed result from an error message.
func ToolFailure(format string, args ...any) ToolResult {
	return ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Tool is an executable capability available to the planner. The
// description is embedded verbatim in LLM planning prompts, so it should
// say what the tool does and what it returns. Tools are side-effect
// isolated: they never see the plan context or the job record and
// communicate exclusively through ToolResult.
type Tool struct {
	Name         string
	Description  string
	InputSchema  Schema
	OutputSchema Schema
	Execute      func(ctx context.Context, inputs map[string]any) ToolResult
}

// ValidateInputs applies the input schema before execution.
func (t *Tool) ValidateInputs(inputs map[string]any) error {
	return t.InputSchema.Validate(inputs)
}

// ToolInfo is the externalized view of a tool for client introspection.
type ToolInfo struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	InputSchema  Schema `json:"input_schema"`
	OutputSchema Schema `json:"output_schema"`
}

// ToolRegistry is the name-keyed directory of tool instances. It is
// built once at startup and owns its tools for the process lifetime.
type ToolRegistry struct {
	tools map[string]*Tool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Registration is idempotent by name: the last
// registration for a given name wins.
func (r *ToolRegistry) Register(tool *Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	r.tools[tool.Name] = tool
	return nil
}

// GetTool returns the tool and whether it exists. Callers must check;
// an unknown name is not an error at lookup time.
func (r *ToolRegistry) GetTool(name string) (*Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// ListTools returns registered tool names in stable order.
func (r *ToolRegistry) ListTools() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns introspection metadata for every registered tool.
func (r *ToolRegistry) Describe() []ToolInfo {
	infos := make([]ToolInfo, 0, len(r.tools))
	for _, name := range r.ListTools() {
		t := r.tools[name]
		infos = append(infos, ToolInfo{
			Name:         t.Name,
			Description:  t.Description,
			InputSchema:  t.InputSchema,
			OutputSchema: t.OutputSchema,
		})
	}
	return infos
}
