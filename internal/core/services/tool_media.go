package services

import (
	"context"
	"fmt"
	"time"

	"github.com/manthysbr/curunir/internal/core/domain"
	"github.com/manthysbr/curunir/internal/core/ports"
)

// The media tools are placeholders until a generation backend is wired
// in. They keep the full input contract so existing plans stay valid
// when a real implementation lands, and record a text artifact
// describing what would have been produced.

func NewImageGenerateTool(artifacts ports.ArtifactStore) *domain.Tool {
	return &domain.Tool{
		Name:        "image_generate",
		Description: "Generates an image from a text prompt. Currently produces a placeholder artifact describing the requested image.",
		InputSchema: domain.Schema{
			Type: "object",
			Properties: map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "Description of the image to generate.",
				},
				"style": map[string]any{
					"type":        "string",
					"description": "Optional style hint (e.g., 'photorealistic', 'illustration').",
				},
				"job_id": map[string]any{
					"type":        "string",
					"description": "Job the artifact belongs to.",
				},
			},
			Required: []string{"prompt"},
		},
		OutputSchema: domain.Schema{
			Type: "object",
			Properties: map[string]any{
				"image_path":  map[string]any{"type": "string"},
				"placeholder": map[string]any{"type": "boolean"},
			},
		},
		Execute: func(ctx context.Context, inputs map[string]any) domain.ToolResult {
			return executeMediaPlaceholder(artifacts, inputs, "image")
		},
	}
}

func NewVideoGenerateTool(artifacts ports.ArtifactStore) *domain.Tool {
	return &domain.Tool{
		Name:        "video_generate",
		Description: "Generates a short video from a text prompt. Currently produces a placeholder artifact describing the requested video.",
		InputSchema: domain.Schema{
			Type: "object",
			Properties: map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "Description of the video to generate.",
				},
				"duration_seconds": map[string]any{
					"type":        "integer",
					"description": "Target duration in seconds (default 10).",
				},
				"job_id": map[string]any{
					"type":        "string",
					"description": "Job the artifact belongs to.",
				},
			},
			Required: []string{"prompt"},
		},
		OutputSchema: domain.Schema{
			Type: "object",
			Properties: map[string]any{
				"video_path":  map[string]any{"type": "string"},
				"placeholder": map[string]any{"type": "boolean"},
			},
		},
		Execute: func(ctx context.Context, inputs map[string]any) domain.ToolResult {
			return executeMediaPlaceholder(artifacts, inputs, "video")
		},
	}
}

func executeMediaPlaceholder(artifacts ports.ArtifactStore, inputs map[string]any, kind string) domain.ToolResult {
	prompt, _ := inputs["prompt"].(string)
	if prompt == "" {
		return domain.ToolFailure("prompt is required")
	}

	jobID, _ := inputs["job_id"].(string)
	if jobID == "" {
		jobID = "unassigned"
	}

	filename := fmt.Sprintf("%s_placeholder_%d.txt", kind, time.Now().UTC().UnixMilli())
	content := fmt.Sprintf("Placeholder %s generation.\nPrompt: %s\n", kind, prompt)

	path := ""
	if artifacts != nil {
		saved, err := artifacts.SaveText(domain.JobID(jobID), filename, content)
		if err != nil {
			return domain.ToolFailure("failed to save placeholder artifact: %v", err)
		}
		path = saved
	}

	return domain.ToolResult{
		Success: true,
		Outputs: map[string]any{
			kind + "_path":  path,
			"placeholder":   true,
			"prompt_echoed": prompt,
		},
	}
}
