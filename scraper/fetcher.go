package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"homewatch/config"
	"homewatch/httputil"
	"homewatch/models"
)

// maxDiagnosticBody bounds how much of a response body ends up in an error
// artifact.
const maxDiagnosticBody = 64 * 1024

// FetchDiagnostic is the full context of a failed fetch, written to the raw
// store's error path.
type FetchDiagnostic struct {
	SourceID       string            `json:"source_id"`
	Endpoint       string            `json:"endpoint"`
	Tier           string            `json:"tier"`
	RequestBody    json.RawMessage   `json:"request_body,omitempty"`
	RequestHeaders map[string]string `json:"request_headers,omitempty"`
	StatusCode     int               `json:"status_code,omitempty"`
	ResponseBody   string            `json:"response_body,omitempty"`
	Message        string            `json:"message"`
	Timestamp      time.Time         `json:"timestamp"`
}

// FetchError wraps a transport, status or shape failure together with its
// diagnostic context.
type FetchError struct {
	Diagnostic *FetchDiagnostic
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Diagnostic.SourceID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// SearchFetcher issues one outbound search request per work item through the
// selected proxy tier.
type SearchFetcher struct {
	endpoint string
	clients  *httputil.Clients
	timeout  time.Duration
}

func NewSearchFetcher(cfg config.ScraperConfig, clients *httputil.Clients) *SearchFetcher {
	return &SearchFetcher{
		endpoint: cfg.SearchEndpoint,
		clients:  clients,
		timeout:  cfg.FetchTimeout,
	}
}

// searchResponse is the documented nested path the results arrive at. Any
// other shape is a failure.
type searchResponse struct {
	Cat1 *struct {
		SearchResults *struct {
			MapResults []models.ListingRecord `json:"mapResults"`
		} `json:"searchResults"`
	} `json:"cat1"`
}

// Fetch runs the search for one source descriptor. Every failure mode
// (transport error, non-2xx, malformed shape) comes back as a *FetchError
// carrying the request/response context.
func (f *SearchFetcher) Fetch(ctx context.Context, src *config.SourceConfig, tier config.ProxyTier) ([]models.ListingRecord, error) {
	body, err := json.Marshal(BuildSearchRequest(src))
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	diag := &FetchDiagnostic{
		SourceID:    src.ID,
		Endpoint:    f.endpoint,
		Tier:        string(tier),
		RequestBody: body,
		Timestamp:   time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, f.endpoint, bytes.NewReader(body))
	if err != nil {
		diag.Message = err.Error()
		return nil, &FetchError{Diagnostic: diag, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", "https://www.zillow.com")
	req.Header.Set("Referer", src.URL)
	diag.RequestHeaders = flattenHeaders(req.Header)

	resp, err := f.clients.ForTier(tier).Do(req)
	if err != nil {
		diag.Message = err.Error()
		return nil, &FetchError{Diagnostic: diag, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxDiagnosticBody))
	diag.StatusCode = resp.StatusCode
	if err != nil {
		diag.Message = err.Error()
		return nil, &FetchError{Diagnostic: diag, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		diag.ResponseBody = string(respBody)
		diag.Message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return nil, &FetchError{Diagnostic: diag, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	return f.parseResults(respBody, diag)
}

func (f *SearchFetcher) parseResults(respBody []byte, diag *FetchDiagnostic) ([]models.ListingRecord, error) {
	var result searchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		diag.ResponseBody = string(respBody)
		diag.Message = "response does not parse"
		return nil, &FetchError{Diagnostic: diag, Err: fmt.Errorf("decode response: %w", err)}
	}

	if result.Cat1 == nil || result.Cat1.SearchResults == nil {
		diag.ResponseBody = string(respBody)
		diag.Message = "response missing cat1.searchResults"
		return nil, &FetchError{Diagnostic: diag, Err: fmt.Errorf("unexpected response shape")}
	}

	return result.Cat1.SearchResults.MapResults, nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
