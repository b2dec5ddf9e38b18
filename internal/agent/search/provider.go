// Package search provides web search providers for the travel agent.
//
// Providers implement a narrow contract: a plain-text query in, a list of
// title/URL/snippet results out. The default provider scrapes DuckDuckGo's
// lite HTML interface and needs no API key.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/tripscout/agent/internal/agent/model"
)

// Provider is the web search collaborator used by the pipeline.
type Provider interface {
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

// RenderResults formats results into the plain-text block handed to the
// formatting model. Only metadata values appear, never the field labels.
func RenderResults(results []model.SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r.Title)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
		fmt.Fprintf(&sb, "   %s\n", r.URL)
	}
	return strings.TrimRight(sb.String(), "\n")
}
