package services

import (
	"github.com/manthysbr/curunir/internal/core/domain"
	"github.com/manthysbr/curunir/internal/core/ports"
)

// RegisterBuiltinTools wires the standard tool set into the registry.
func RegisterBuiltinTools(reg *domain.ToolRegistry, llm ports.LLMClient, artifacts ports.ArtifactStore) error {
	for _, tool := range []*domain.Tool{
		NewScrapeURLTool(),
		NewLLMGenerateTool(llm),
		NewSearchWebTool(),
		NewImageGenerateTool(artifacts),
		NewVideoGenerateTool(artifacts),
	} {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}
