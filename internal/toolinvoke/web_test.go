package toolinvoke

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRequestRequiresMethodAndURL(t *testing.T) {
	req := NewHTTPRequest()
	_, err := req.Invoke(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestHTTPRequestSetsHeadersAndBody(t *testing.T) {
	var gotMethod, gotHeader, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Test")
		body := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(body)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ack"))
	}))
	defer server.Close()

	req := NewHTTPRequest()
	result, err := req.Invoke(context.Background(), map[string]any{
		"method":  "post",
		"url":     server.URL,
		"body":    "payload",
		"headers": map[string]any{"X-Test": "value"},
	})
	require.NoError(t, err)

	shaped := result.(map[string]any)
	assert.Equal(t, http.StatusCreated, shaped["status_code"])
	assert.Equal(t, "ack", shaped["body"])
	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "value", gotHeader)
	assert.Equal(t, "payload", gotBody)
}

func TestWebFetchJSONDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hello":"world"}`))
	}))
	defer server.Close()

	fetch := NewWebFetchJSON()
	result, err := fetch.Invoke(context.Background(), map[string]any{"url": server.URL})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hello": "world"}, result)
}

func TestWebFetchJSONRequiresURL(t *testing.T) {
	fetch := NewWebFetchJSON()
	_, err := fetch.Invoke(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestWebFetchJSONRejectsMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	fetch := NewWebFetchJSON()
	_, err := fetch.Invoke(context.Background(), map[string]any{"url": server.URL})
	assert.Error(t, err)
}

func TestExtractSearchResultsParsesResultAnchors(t *testing.T) {
	html := `<html><body>
		<a class="result__a" href="https://example.com/a">First Result</a>
		<a class="other" href="https://example.com/ignored">Not A Result</a>
		<a class="result__a" href="https://example.com/b">Second Result</a>
	</body></html>`

	results := extractSearchResults(strings.NewReader(html))
	require.Len(t, results, 2)
	assert.Equal(t, "First Result", results[0].Title)
	assert.Equal(t, "https://example.com/a", results[0].URL)
	assert.Equal(t, "Second Result", results[1].Title)
}

func TestExtractSearchResultsToleratesMalformedMarkup(t *testing.T) {
	results := extractSearchResults(strings.NewReader("<not even close to html"))
	assert.Nil(t, results)
}

func TestWebSearchRequiresQuery(t *testing.T) {
	search := NewWebSearch()
	_, err := search.Invoke(context.Background(), map[string]any{})
	assert.Error(t, err)
}
