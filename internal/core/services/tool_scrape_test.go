package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSSRFTarget(t *testing.T) {
	blocked := []string{
		"http://localhost/foo",
		"http://127.0.0.1:8080/api",
		"http://0.0.0.0/path",
		"http://[::1]/bar",
		"http://169.254.169.254/latest/meta-data",
		"http://metadata.google.internal/computeMetadata",
		"ftp://example.com/file", // non-HTTP scheme
		"file:///etc/passwd",
		"http://10.0.0.1/internal",   // private IP
		"http://192.168.1.1/admin",   // private IP
		"http://172.16.0.1/internal", // private IP
	}

	for _, url := range blocked {
		t.Run("blocked_"+url, func(t *testing.T) {
			assert.True(t, isSSRFTarget(url), "should block: %s", url)
		})
	}

	allowed := []string{
		"https://example.com",
		"https://www.idealista.com/inmueble/12345",
		"http://www.google.com/search?q=test",
	}

	for _, url := range allowed {
		t.Run("allowed_"+url, func(t *testing.T) {
			assert.False(t, isSSRFTarget(url), "should allow: %s", url)
		})
	}
}

func TestExtractTextFromHTML(t *testing.T) {
	html := `<html><head><style>body{color:red}</style></head>
	<body>
	<script>alert('xss')</script>
	<h1>Bright Apartment</h1>
	<p>Two bedrooms, <b>great</b> views.</p>
	<nav>Navigation links</nav>
	</body></html>`

	text := extractTextFromHTML(html)

	assert.Contains(t, text, "Bright Apartment")
	assert.Contains(t, text, "great")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "<script>")
	assert.NotContains(t, text, "Navigation links")
}

func TestScrapeURLTool_InputValidation(t *testing.T) {
	tool := NewScrapeURLTool()

	t.Run("missing url", func(t *testing.T) {
		result := tool.Execute(context.Background(), map[string]any{})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "url is required")
	})

	t.Run("internal address denied", func(t *testing.T) {
		result := tool.Execute(context.Background(), map[string]any{"url": "http://127.0.0.1/secret"})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "denied")
	})

	t.Run("schema requires url", func(t *testing.T) {
		require.Error(t, tool.ValidateInputs(map[string]any{}))
		require.NoError(t, tool.ValidateInputs(map[string]any{"url": "https://example.com"}))
	})
}
