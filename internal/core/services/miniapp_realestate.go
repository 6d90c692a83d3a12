package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manthysbr/curunir/internal/core/domain"
	"github.com/manthysbr/curunir/internal/core/ports"
)

const realEstateAnalyzePrompt = `You are a real estate data extraction assistant.

Extract structured property data from the listing content below. Respond
with ONLY a valid JSON object with these fields (use null when unknown):
{
  "property_type": "apartment | house | ...",
  "location": "neighbourhood, city",
  "price": "as listed",
  "bedrooms": 0,
  "bathrooms": 0,
  "area_sqm": 0,
  "features": ["list", "of", "features"],
  "condition": "new | renovated | needs work | unknown"
}

LISTING CONTENT:
%s

Respond ONLY with the JSON object:`

var realEstateAdPrompts = map[int]string{
	1: `You are a real estate copywriter. Write a simple, concise advertisement
(2-3 paragraphs) for the property described by this data. Lead with the
strongest selling point. Plain text only, no markdown.

PROPERTY DATA:
%s`,
	2: `You are a senior real estate copywriter. Write a comprehensive,
sophisticated advertisement (4-5 paragraphs) for the property described by
this data. Cover location, layout, features and lifestyle. Close with a
call to action. Plain text only, no markdown.

PROPERTY DATA:
%s`,
	3: `You are a real estate SEO specialist. Write a search-engine-optimized
advertisement for the property described by this data. Include relevant
keywords naturally (property type, location, key features), a compelling
headline on the first line, and a call to action. Plain text only.

PROPERTY DATA:
%s`,
}

// RealEstateAdsApp generates advertisement copy from a listing URL:
// scrape the page, extract structured property data with the LLM, then
// render variant-selected ad copy.
type RealEstateAdsApp struct {
	logger    *slog.Logger
	llm       ports.LLMClient
	tools     *domain.ToolRegistry
	artifacts ports.ArtifactStore
}

func NewRealEstateAdsApp(logger *slog.Logger, llm ports.LLMClient, tools *domain.ToolRegistry, artifacts ports.ArtifactStore) *RealEstateAdsApp {
	return &RealEstateAdsApp{logger: logger, llm: llm, tools: tools, artifacts: artifacts}
}

func (a *RealEstateAdsApp) Metadata() domain.MiniAppMetadata {
	return domain.MiniAppMetadata{
		ID:          "realestate_ads",
		Name:        "Real Estate Ad Generator",
		Description: "Generate compelling real estate advertisements from listing URLs",
		Version:     "1.0.0",
		Tags:        []string{"marketing", "real-estate", "copywriting"},
		Variants: map[int]string{
			1: "Basic - Simple, concise ad",
			2: "Detailed - Comprehensive, sophisticated ad",
			3: "SEO-optimized - Search engine optimized ad with keywords",
		},
	}
}

func (a *RealEstateAdsApp) Run(ctx context.Context, job *domain.Job, logf LogFunc) (map[string]any, error) {
	if err := validateVariant(a.Metadata(), job.Variant); err != nil {
		return nil, err
	}

	url, _ := job.Input["listing_url"].(string)
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http") {
		return nil, fmt.Errorf("invalid listing_url: must start with http:// or https://")
	}

	// Step 1: scrape the listing.
	job.SetProgress(0.1, "scraping")
	if err := logf("Scraping URL: " + url); err != nil {
		return nil, err
	}

	scrape, ok := a.tools.GetTool("scrape_url")
	if !ok {
		return nil, fmt.Errorf("scrape_url tool: %w", domain.ErrToolNotFound)
	}
	scraped := scrape.Execute(ctx, map[string]any{"url": url})
	if !scraped.Success {
		return nil, fmt.Errorf("scraping failed: %s", scraped.Error)
	}
	content, _ := scraped.Outputs["content"].(string)
	if err := logf(fmt.Sprintf("Successfully scraped %d characters", len(content))); err != nil {
		return nil, err
	}

	// Step 2: extract structured data. Low temperature keeps the
	// extraction factual.
	job.SetProgress(0.4, "analyzing")
	if err := logf("Analyzing listing data..."); err != nil {
		return nil, err
	}

	analysis, err := a.llm.Complete(ctx, fmt.Sprintf(realEstateAnalyzePrompt, content), 1000, 0.3)
	if err != nil {
		return nil, fmt.Errorf("listing analysis: %w", err)
	}

	var extracted map[string]any
	if jsonErr := json.Unmarshal([]byte(stripCodeFences(analysis)), &extracted); jsonErr != nil {
		// Keep the raw text rather than failing the whole workflow.
		extracted = map[string]any{
			"raw_analysis": analysis,
			"note":         "Failed to parse structured JSON from LLM response",
		}
	}

	dataPath, err := a.artifacts.SaveJSON(job.ID, "extracted_data.json", extracted)
	if err != nil {
		return nil, fmt.Errorf("save extracted data: %w", err)
	}
	job.AddArtifact(domain.Artifact{Kind: domain.ArtifactJSON, Label: "Extracted Property Data", Path: dataPath})
	if err := logf("Successfully extracted property data"); err != nil {
		return nil, err
	}

	// Step 3: generate the ad for the selected variant. Higher
	// temperature for creative copy.
	job.SetProgress(0.7, "generating")
	meta := a.Metadata()
	if err := logf(fmt.Sprintf("Generating ad (variant %d: %s)...", job.Variant, meta.Variants[job.Variant])); err != nil {
		return nil, err
	}

	extractedJSON, _ := json.MarshalIndent(extracted, "", "  ")
	adText, err := a.llm.Complete(ctx, fmt.Sprintf(realEstateAdPrompts[job.Variant], extractedJSON), 1500, 0.7)
	if err != nil {
		return nil, fmt.Errorf("ad generation: %w", err)
	}

	adPath, err := a.artifacts.SaveText(job.ID, "generated_ad.txt", adText)
	if err != nil {
		return nil, fmt.Errorf("save generated ad: %w", err)
	}
	job.AddArtifact(domain.Artifact{
		Kind:    domain.ArtifactText,
		Label:   "Generated Advertisement",
		Path:    adPath,
		Preview: preview(adText, 200),
	})
	if err := logf(fmt.Sprintf("Successfully generated ad (%d characters)", len(adText))); err != nil {
		return nil, err
	}

	job.SetProgress(0.95, "")
	return map[string]any{
		"url":            url,
		"variant":        job.Variant,
		"extracted_data": extracted,
		"ad_text":        adText,
	}, nil
}

// stripCodeFences removes a wrapping markdown code block if the model
// added one around its JSON output.
func stripCodeFences(s string) string {
	cleaned := strings.TrimSpace(s)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = cleaned[7:]
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = cleaned[3:]
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
