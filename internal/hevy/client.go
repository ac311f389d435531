package hevy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client fetches paginated workout pages from the Hevy API. It holds no
// local state beyond the HTTP client; all persistence is the caller's job.
type Client struct {
	baseURL     string
	headerName  string
	headerValue string
	httpClient  *http.Client
	log         *slog.Logger
}

// NewClient creates a Client. The credential is attached to every request
// as a single headerName/headerValue pair; both come from configuration.
func NewClient(baseURL, headerName, headerValue string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		headerName:  headerName,
		headerValue: headerValue,
		httpClient:  &http.Client{Timeout: timeout},
		log:         log,
	}
}

// pageEnvelope covers the response shapes the API has used for the workout
// list. Only one of the three list keys is populated per response.
type pageEnvelope struct {
	Page      int               `json:"page"`
	PageCount int               `json:"page_count"`
	Workouts  []json.RawMessage `json:"workouts"`
	Items     []json.RawMessage `json:"items"`
	Data      []json.RawMessage `json:"data"`
}

// FetchPage retrieves one page of raw workout payloads. hasMore reports
// whether another page exists. A 404 is treated as the end of the data set,
// not an error, because the API signals past-the-end pages that way.
func (c *Client) FetchPage(ctx context.Context, page, pageSize int) ([]json.RawMessage, bool, error) {
	url := fmt.Sprintf("%s/v1/workouts?page=%d&pageSize=%d", c.baseURL, page, pageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.headerValue != "" {
		req.Header.Set(c.headerName, c.headerValue)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, &TransientError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, &AuthError{Status: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case resp.StatusCode >= 500:
		return nil, false, &TransientError{Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return nil, false, &ProtocolError{Detail: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(body))}
	}

	items, pageCount, err := decodePage(body)
	if err != nil {
		return nil, false, err
	}

	c.log.Debug("fetched page", "page", page, "items", len(items), "page_count", pageCount)

	hasMore := len(items) > 0
	if pageCount > 0 {
		hasMore = page < pageCount
	}
	return items, hasMore, nil
}

// decodePage extracts the workout list and page count from a response body,
// accepting the enveloped dict shapes as well as a bare top-level array.
func decodePage(body []byte) ([]json.RawMessage, int, error) {
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, 0, &ProtocolError{Detail: "decoding workout array", Err: err}
		}
		return items, 0, nil
	}

	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, &ProtocolError{Detail: "decoding page envelope", Err: err}
	}

	switch {
	case env.Workouts != nil:
		return env.Workouts, env.PageCount, nil
	case env.Items != nil:
		return env.Items, env.PageCount, nil
	case env.Data != nil:
		return env.Data, env.PageCount, nil
	}
	return nil, 0, &ProtocolError{Detail: "response has no workout list (expected workouts, items, or data key)"}
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
