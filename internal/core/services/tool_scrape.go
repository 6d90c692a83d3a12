package services

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/manthysbr/curunir/internal/core/domain"
)

const scrapeMaxBody = 1024 * 1024

// isSSRFTarget checks if a URL targets internal/metadata endpoints.
func isSSRFTarget(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true // block unparseable URLs
	}

	host := parsed.Hostname()

	blocked := []string{
		"localhost",
		"127.0.0.1",
		"0.0.0.0",
		"[::1]",
		"::1",
		"169.254.169.254", // AWS metadata
		"metadata.google.internal",
		"metadata.google",
	}
	for _, b := range blocked {
		if strings.EqualFold(host, b) {
			return true
		}
	}

	ip := net.ParseIP(host)
	if ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return true
		}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return true
	}

	return false
}

// NewScrapeURLTool fetches a page and extracts its readable text content.
func NewScrapeURLTool() *domain.Tool {
	return &domain.Tool{
		Name:        "scrape_url",
		Description: "Fetches a web page and extracts its readable text content (navigation, scripts and boilerplate stripped). Max 1MB response.",
		InputSchema: domain.Schema{
			Type: "object",
			Properties: map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL to scrape (e.g., 'https://example.com/listing/123').",
				},
			},
			Required: []string{"url"},
		},
		OutputSchema: domain.Schema{
			Type: "object",
			Properties: map[string]any{
				"content": map[string]any{"type": "string"},
				"title":   map[string]any{"type": "string"},
				"url":     map[string]any{"type": "string"},
			},
		},
		Execute: func(ctx context.Context, inputs map[string]any) domain.ToolResult {
			rawURL, _ := inputs["url"].(string)
			if rawURL == "" {
				return domain.ToolFailure("url is required")
			}

			if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
				rawURL = "https://" + rawURL
			}

			if isSSRFTarget(rawURL) {
				return domain.ToolFailure("URL denied: cannot fetch internal/private addresses")
			}

			fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(fetchCtx, "GET", rawURL, nil)
			if err != nil {
				return domain.ToolFailure("invalid URL: %v", err)
			}
			req.Header.Set("User-Agent", "curunir/1.0 (Workflow Scraper)")
			req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain,*/*")

			client := &http.Client{
				Timeout: 30 * time.Second,
				CheckRedirect: func(req *http.Request, via []*http.Request) error {
					if isSSRFTarget(req.URL.String()) {
						return fmt.Errorf("redirect to internal address denied")
					}
					if len(via) >= 5 {
						return fmt.Errorf("too many redirects")
					}
					return nil
				},
			}

			resp, err := client.Do(req)
			if err != nil {
				return domain.ToolFailure("fetch failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 {
				return domain.ToolFailure("HTTP %d: %s", resp.StatusCode, resp.Status)
			}

			limited := io.LimitReader(resp.Body, scrapeMaxBody+1)
			body, err := io.ReadAll(limited)
			if err != nil {
				return domain.ToolFailure("failed to read response: %v", err)
			}
			if len(body) > scrapeMaxBody {
				body = body[:scrapeMaxBody]
			}

			content := string(body)
			title := ""

			contentType := resp.Header.Get("Content-Type")
			if strings.Contains(contentType, "text/html") || strings.Contains(content, "<html") {
				article, err := readability.FromReader(strings.NewReader(content), resp.Request.URL)
				if err == nil && strings.TrimSpace(article.TextContent) != "" {
					content = article.TextContent
					title = article.Title
				} else {
					content = extractTextFromHTML(content)
				}
			}

			// Truncate for token budget
			if len(content) > 32000 {
				content = content[:32000] + "\n\n... (content truncated at 32KB)"
			}
			content = strings.TrimSpace(content)
			if content == "" {
				return domain.ToolFailure("page returned empty content")
			}

			return domain.ToolResult{
				Success: true,
				Outputs: map[string]any{
					"content": content,
					"title":   title,
					"url":     rawURL,
				},
				Metadata: map[string]any{"status_code": resp.StatusCode},
			}
		},
	}
}

// extractTextFromHTML does a basic HTML-to-text conversion when the
// readability extractor finds no article content. Strips script, style
// and layout blocks, then all remaining tags. Not a full parser.
func extractTextFromHTML(html string) string {
	result := html
	for _, tag := range []string{"script", "style", "noscript", "nav", "footer", "header"} {
		for {
			openTag := strings.Index(strings.ToLower(result), "<"+tag)
			if openTag == -1 {
				break
			}
			closeTag := strings.Index(strings.ToLower(result[openTag:]), "</"+tag+">")
			if closeTag == -1 {
				result = result[:openTag]
				break
			}
			endIdx := openTag + closeTag + len("</"+tag+">")
			result = result[:openTag] + result[endIdx:]
		}
	}

	var text strings.Builder
	inTag := false
	for _, ch := range result {
		if ch == '<' {
			inTag = true
			continue
		}
		if ch == '>' {
			inTag = false
			text.WriteRune(' ')
			continue
		}
		if !inTag {
			text.WriteRune(ch)
		}
	}

	lines := strings.Split(text.String(), "\n")
	var cleaned []string
	for _, line := range lines {
		trimmed := strings.Join(strings.Fields(line), " ")
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}

	return strings.Join(cleaned, "\n")
}
