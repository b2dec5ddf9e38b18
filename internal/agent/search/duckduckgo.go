package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tripscout/agent/internal/agent/model"
	errx "github.com/tripscout/agent/internal/core/error"
	logx "github.com/tripscout/agent/pkg/logger"
)

const ddgLiteEndpoint = "https://lite.duckduckgo.com/lite/"

// userAgent mimics a desktop browser; the lite endpoint rejects obvious bots.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DuckDuckGo implements Provider by scraping DuckDuckGo's HTML lite interface,
// which is stable enough to parse with a couple of regexes.
type DuckDuckGo struct {
	client     *http.Client
	maxResults int
}

func NewDuckDuckGo(cfg model.SearchConfig) *DuckDuckGo {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &DuckDuckGo{
		client:     &http.Client{Timeout: timeout},
		maxResults: maxResults,
	}
}

// NewDuckDuckGoWithClient uses the supplied HTTP client, mainly for tests.
func NewDuckDuckGoWithClient(client *http.Client, maxResults int) *DuckDuckGo {
	return &DuckDuckGo{client: client, maxResults: maxResults}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}

	formData := url.Values{}
	formData.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ddgLiteEndpoint, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errx.WrapSearch(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errx.WrapSearch(fmt.Errorf("duckduckgo http %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errx.WrapSearch(fmt.Errorf("read response: %w", err))
	}

	results := parseLiteHTML(string(body), d.maxResults)
	logx.Debug().Str("query", query).Int("results", len(results)).Msg("Search completed")
	return results, nil
}

var (
	// Result links: <a rel="nofollow" href="URL" class='result-link'>TITLE</a>
	ddgLinkPattern = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	// Alternative when href comes before the class attribute.
	ddgLinkPatternAlt = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	// Snippets live in <td class="result-snippet">.
	ddgSnippetPattern = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([^<]+(?:<[^>]+>[^<]*</[^>]+>)*[^<]*)</td>`)
)

// parseLiteHTML extracts up to max results from the DuckDuckGo lite page.
func parseLiteHTML(html string, max int) []model.SearchResult {
	var results []model.SearchResult

	matches := ddgLinkPattern.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		matches = ddgLinkPatternAlt.FindAllStringSubmatch(html, -1)
	}
	snippetMatches := ddgSnippetPattern.FindAllStringSubmatch(html, -1)

	for i, match := range matches {
		if len(match) < 3 {
			continue
		}

		urlStr := strings.TrimSpace(match[1])
		title := cleanHTML(strings.TrimSpace(match[2]))

		// Skip ad rows and malformed entries.
		if urlStr == "" || title == "" {
			continue
		}

		snippet := ""
		if i < len(snippetMatches) && len(snippetMatches[i]) > 1 {
			snippet = cleanHTML(snippetMatches[i][1])
		}

		results = append(results, model.SearchResult{
			Title:   title,
			URL:     urlStr,
			Snippet: snippet,
		})

		if len(results) >= max {
			break
		}
	}

	return results
}

var htmlEntityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#x27;", "'",
	"&#39;", "'",
	"&nbsp;", " ",
)

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// cleanHTML strips tags and decodes the entities the lite page emits.
func cleanHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = htmlEntityReplacer.Replace(s)
	return strings.TrimSpace(s)
}
