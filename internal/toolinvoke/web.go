package toolinvoke

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

// NewHTTPRequest builds the http_request invoker.
func NewHTTPRequest() Invoker {
	client := newHTTPClient()
	return InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		method, _ := stringArg(args, "method")
		targetURL, _ := stringArg(args, "url")
		body, _ := stringArg(args, "body")
		if method == "" || targetURL == "" {
			return nil, fmt.Errorf("method and url are required")
		}

		var bodyReader io.Reader
		if body != "" {
			bodyReader = strings.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), targetURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if headers, ok := args["headers"].(map[string]any); ok {
			for k, v := range headers {
				if s, ok := v.(string); ok {
					req.Header.Set(k, s)
				}
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return map[string]any{
			"status_code": resp.StatusCode,
			"body":        string(respBody),
		}, nil
	})
}

// NewWebFetchJSON builds the web_fetch_json invoker.
func NewWebFetchJSON() Invoker {
	client := newHTTPClient()
	return InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		targetURL, _ := stringArg(args, "url")
		if targetURL == "" {
			return nil, fmt.Errorf("url is required")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
		defer resp.Body.Close()

		var parsed any
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return parsed, nil
	})
}

// SearchResult is one entry from web_search, best-effort per spec §9 (the
// backing page is a third-party HTML surface with no stability guarantee).
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// NewWebSearch builds the web_search invoker, scraping the DuckDuckGo
// HTML-only results page. Every field is treated as optional: missing
// markup yields fewer results, never an error.
func NewWebSearch() Invoker {
	client := newHTTPClient()
	return InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		query, _ := stringArg(args, "query")
		if query == "" {
			return nil, fmt.Errorf("query is required")
		}

		endpoint := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; agentrt/1.0)")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		defer resp.Body.Close()

		results := extractSearchResults(resp.Body)
		return map[string]any{"query": query, "results": results}, nil
	})
}

// extractSearchResults walks the parsed HTML tree looking for
// `a.result__a` anchors, the DuckDuckGo HTML-lite result-link class.
// Any malformed or unexpected markup simply yields no results rather than
// an error.
func extractSearchResults(r io.Reader) []SearchResult {
	doc, err := html.Parse(r)
	if err != nil {
		return nil
	}
	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			href := attr(n, "href")
			title := textContent(n)
			if href != "" && title != "" {
				results = append(results, SearchResult{Title: title, URL: href})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" && strings.Contains(a.Val, class) {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return strings.TrimSpace(sb.String())
}
