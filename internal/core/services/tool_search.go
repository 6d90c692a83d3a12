package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/manthysbr/curunir/internal/core/domain"
)

type searchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// NewSearchWebTool searches the web via the DuckDuckGo HTML endpoint.
func NewSearchWebTool() *domain.Tool {
	return &domain.Tool{
		Name:        "search_web",
		Description: "Searches the web using DuckDuckGo. Returns top results with titles, snippets, and URLs.",
		InputSchema: domain.Schema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query (e.g., 'apartments for sale lisbon').",
				},
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results to return (default 5, max 10).",
				},
			},
			Required: []string{"query"},
		},
		OutputSchema: domain.Schema{
			Type: "object",
			Properties: map[string]any{
				"results": map[string]any{"type": "array"},
			},
		},
		Execute: func(ctx context.Context, inputs map[string]any) domain.ToolResult {
			query, _ := inputs["query"].(string)
			if query == "" {
				return domain.ToolFailure("query is required")
			}

			maxResults := 5
			if v, ok := inputs["max_results"].(float64); ok && v > 0 {
				maxResults = min(int(v), 10)
			}

			results, err := searchDuckDuckGo(ctx, query, maxResults)
			if err != nil {
				return domain.ToolFailure("search failed: %v", err)
			}

			items := make([]any, 0, len(results))
			for _, r := range results {
				items = append(items, map[string]any{
					"title":   r.Title,
					"link":    r.Link,
					"snippet": r.Snippet,
				})
			}
			return domain.ToolResult{
				Success: true,
				Outputs: map[string]any{"results": items},
			}
		},
	}
}

// Result title link: <a class="result__a" href="...">, snippet link:
// <a class="result__snippet" ...>. These class names have been stable on
// the non-JS HTML endpoint.
var (
	ddgLinkRe    = regexp.MustCompile(`<a[^>]+class="[^"]*result__a[^"]*"[^>]+href="([^"]+)"[^>]*>([^<]+)</a>`)
	ddgSnippetRe = regexp.MustCompile(`<a[^>]+class="[^"]*result__snippet[^"]*"[^>]*>([^<]+)</a>`)
)

func searchDuckDuckGo(ctx context.Context, query string, maxResults int) ([]searchResult, error) {
	// html.duckduckgo.com serves the lighter non-JS version.
	reqURL := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ddg error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	html := string(body)

	linkMatches := ddgLinkRe.FindAllStringSubmatch(html, maxResults*2)
	snippetMatches := ddgSnippetRe.FindAllStringSubmatch(html, maxResults*2)

	var results []searchResult
	for i, match := range linkMatches {
		if len(results) >= maxResults {
			break
		}

		rawLink := match[1]
		title := strings.TrimSpace(match[2])

		// Unwrap DDG redirect links (//duckduckgo.com/l/?uddg=...).
		decodedLink := rawLink
		if strings.Contains(rawLink, "uddg=") {
			if u, err := url.Parse(rawLink); err == nil {
				if val := u.Query().Get("uddg"); val != "" {
					decodedLink = val
				}
			}
		}

		snippet := ""
		if i < len(snippetMatches) {
			snippet = strings.TrimSpace(snippetMatches[i][1])
		}

		title = strings.ReplaceAll(strings.ReplaceAll(title, "<b>", ""), "</b>", "")
		snippet = strings.ReplaceAll(strings.ReplaceAll(snippet, "<b>", ""), "</b>", "")

		if title != "" && decodedLink != "" {
			results = append(results, searchResult{Title: title, Link: decodedLink, Snippet: snippet})
		}
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("no results found on DuckDuckGo (layout likely changed or blocked)")
	}
	return results, nil
}
