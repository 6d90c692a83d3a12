package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/manthysbr/curunir/internal/core/domain"
	"github.com/manthysbr/curunir/internal/core/ports"
)

const classifyOwnerPrompt = `You are an assistant that classifies real estate
listings as published by a PRIVATE OWNER or by an AGENCY.

Signals of an agency: company names, "professional", reference codes,
many listings, fees mentioned, branded phone lines. Signals of a private
owner: first-person wording, "no agencies", personal phone numbers.

Respond with ONLY a valid JSON object:
{
  "is_private": true,
  "confidence": 0.0,
  "owner_name": null,
  "phone": null,
  "notes": "short justification"
}

LISTING TEXT:
%s

Respond ONLY with the JSON object:`

// MarketScraperApp scrapes listing pages, classifies them as private
// seller or agency with the LLM, persists the results in the lead store
// and exports fresh private leads as a CSV artifact.
type MarketScraperApp struct {
	logger    *slog.Logger
	llm       ports.LLMClient
	tools     *domain.ToolRegistry
	artifacts ports.ArtifactStore
	leads     ports.LeadStore
}

func NewMarketScraperApp(logger *slog.Logger, llm ports.LLMClient, tools *domain.ToolRegistry, artifacts ports.ArtifactStore, leads ports.LeadStore) *MarketScraperApp {
	return &MarketScraperApp{logger: logger, llm: llm, tools: tools, artifacts: artifacts, leads: leads}
}

func (a *MarketScraperApp) Metadata() domain.MiniAppMetadata {
	return domain.MiniAppMetadata{
		ID:          "market_scraper",
		Name:        "Private Seller Market Scraper",
		Description: "Scrape real estate listings, detect private sellers and export leads",
		Version:     "1.0.0",
		Tags:        []string{"real-estate", "leads", "scraping"},
		Variants: map[int]string{
			1: "Standard - scrape, classify and export",
		},
	}
}

func (a *MarketScraperApp) Run(ctx context.Context, job *domain.Job, logf LogFunc) (map[string]any, error) {
	if err := validateVariant(a.Metadata(), job.Variant); err != nil {
		return nil, err
	}

	urls := stringList(job.Input["listing_urls"])
	if len(urls) == 0 {
		return nil, fmt.Errorf("listing_urls is required and must be a non-empty list of URLs")
	}

	scrape, ok := a.tools.GetTool("scrape_url")
	if !ok {
		return nil, fmt.Errorf("scrape_url tool: %w", domain.ErrToolNotFound)
	}

	scrapedCount := 0
	privateCount := 0

	for i, listingURL := range urls {
		job.SetProgress(0.1+0.7*float64(i)/float64(len(urls)), fmt.Sprintf("scraping %d/%d", i+1, len(urls)))
		if err := logf("Scraping URL: " + listingURL); err != nil {
			return nil, err
		}

		result := scrape.Execute(ctx, map[string]any{"url": listingURL})
		if !result.Success {
			// A dead listing should not sink the whole batch.
			if err := logf(fmt.Sprintf("Skipping %s: %s", listingURL, result.Error)); err != nil {
				return nil, err
			}
			continue
		}
		content, _ := result.Outputs["content"].(string)

		listingID, err := a.leads.SaveRawListing(ctx, ports.RawListing{
			Source:  sourceFromURL(listingURL),
			URL:     listingURL,
			Content: content,
		})
		if err != nil {
			return nil, fmt.Errorf("persist listing %s: %w", listingURL, err)
		}
		scrapedCount++

		classification := a.classifyListing(ctx, content)
		lead := ports.Lead{
			RawListingID: listingID,
			IsPrivate:    classification.IsPrivate,
			Confidence:   classification.Confidence,
			ContactName:  classification.OwnerName,
			ContactPhone: classification.Phone,
			Notes:        classification.Notes,
		}
		if _, err := a.leads.SaveLead(ctx, lead); err != nil {
			return nil, fmt.Errorf("persist lead for %s: %w", listingURL, err)
		}

		if classification.IsPrivate {
			privateCount++
			if err := logf(fmt.Sprintf("Private seller detected (confidence %.2f)", classification.Confidence)); err != nil {
				return nil, err
			}
		}
	}

	// Export every not-yet-exported private lead, including leftovers
	// from earlier runs.
	job.SetProgress(0.9, "exporting")
	if err := logf("Exporting private leads..."); err != nil {
		return nil, err
	}

	exported, err := a.exportLeads(ctx, job)
	if err != nil {
		return nil, err
	}
	if err := logf(fmt.Sprintf("Exported %d leads", exported)); err != nil {
		return nil, err
	}

	return map[string]any{
		"listings_scraped": scrapedCount,
		"private_sellers":  privateCount,
		"leads_exported":   exported,
	}, nil
}

type ownerClassification struct {
	IsPrivate  bool    `json:"is_private"`
	Confidence float64 `json:"confidence"`
	OwnerName  string  `json:"owner_name"`
	Phone      string  `json:"phone"`
	Notes      string  `json:"notes"`
}

// classifyListing never fails the workflow: an unusable LLM response
// degrades to a low-confidence non-private classification with the
// problem recorded in the notes.
func (a *MarketScraperApp) classifyListing(ctx context.Context, listingText string) ownerClassification {
	// Keep the head and tail, contact details usually live at one end.
	truncated := listingText
	if len(listingText) > 2000 {
		truncated = listingText[:1500] + "\n...\n" + listingText[len(listingText)-500:]
	}

	response, err := a.llm.Complete(ctx, fmt.Sprintf(classifyOwnerPrompt, truncated), 500, 0.1)
	if err != nil {
		a.logger.Error("classification failed", "error", err)
		return ownerClassification{Notes: "Error during classification: " + err.Error()}
	}

	var c ownerClassification
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &c); err != nil {
		a.logger.Error("failed to parse classification response", "error", err)
		return ownerClassification{Notes: "Failed to parse JSON response. Raw: " + preview(response, 100)}
	}
	return c
}

func (a *MarketScraperApp) exportLeads(ctx context.Context, job *domain.Job) (int, error) {
	fresh, err := a.leads.ListLeads(ctx, "new")
	if err != nil {
		return 0, fmt.Errorf("list new leads: %w", err)
	}

	var (
		rows []([]string)
		ids  []int64
	)
	for _, lead := range fresh {
		if !lead.IsPrivate {
			continue
		}
		rows = append(rows, []string{
			strconv.FormatInt(lead.ID, 10),
			lead.ContactName,
			lead.ContactPhone,
			strconv.FormatFloat(lead.Confidence, 'f', 2, 64),
			lead.Notes,
		})
		ids = append(ids, lead.ID)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	header := []string{"lead_id", "contact_name", "contact_phone", "confidence", "notes"}
	path, err := a.artifacts.SaveCSV(job.ID, "leads_export.csv", header, rows)
	if err != nil {
		return 0, fmt.Errorf("write leads export: %w", err)
	}
	job.AddArtifact(domain.Artifact{Kind: domain.ArtifactCSV, Label: "Private Seller Leads", Path: path})

	if err := a.leads.MarkExported(ctx, ids); err != nil {
		return 0, fmt.Errorf("mark leads exported: %w", err)
	}
	return len(ids), nil
}

func stringList(v any) []string {
	var out []string
	switch vals := v.(type) {
	case []string:
		out = vals
	case []any:
		for _, item := range vals {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

func sourceFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
