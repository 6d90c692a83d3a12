package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDDGResultRegexes(t *testing.T) {
	html := `
	<div class="result results_links">
	  <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fflat">Bright flat for sale</a>
	  <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fflat">Two bedroom flat with views</a>
	</div>
	<div class="result results_links">
	  <a rel="nofollow" class="result__a" href="https://example.org/house">House listing</a>
	  <a class="result__snippet" href="https://example.org/house">Detached house</a>
	</div>`

	links := ddgLinkRe.FindAllStringSubmatch(html, 10)
	require.Len(t, links, 2)
	assert.Equal(t, "Bright flat for sale", links[0][2])
	assert.Contains(t, links[0][1], "uddg=")
	assert.Equal(t, "https://example.org/house", links[1][1])

	snippets := ddgSnippetRe.FindAllStringSubmatch(html, 10)
	require.Len(t, snippets, 2)
}

func TestSearchWebTool_InputValidation(t *testing.T) {
	tool := NewSearchWebTool()

	result := tool.Execute(context.Background(), map[string]any{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "query is required")

	require.Error(t, tool.ValidateInputs(map[string]any{}))
	require.NoError(t, tool.ValidateInputs(map[string]any{"query": "flats lisbon"}))
}
