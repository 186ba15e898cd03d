package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/mapty/internal/form"
	"github.com/claude/mapty/internal/models"
	"github.com/claude/mapty/internal/tracker"
)

// HTTPClient implements DataSource by calling the mapty REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// is sent on writes when non-empty.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, in any) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("httpclient: %s: %w", path, tracker.ErrNotFound)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("httpclient: %s %s returned %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(respBody))
	}
	return respBody, unsavedWarning(resp.Header.Get("Warning"))
}

// unsavedWarning turns the server's "199 mapty <quoted text>" header into
// a *tracker.StorageWriteError. Other warnings are ignored.
func unsavedWarning(h string) error {
	code, rest, ok := strings.Cut(h, " ")
	if !ok || code != "199" {
		return nil
	}
	_, text, _ := strings.Cut(rest, " ")
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = unquoted
	}
	return &tracker.StorageWriteError{Key: "remote", Err: errors.New(text)}
}

func (c *HTTPClient) ListWorkouts(ctx context.Context, kind models.Kind) ([]models.Record, error) {
	params := url.Values{}
	if kind != "" {
		params.Set("type", string(kind))
	}

	body, err := c.do(ctx, http.MethodGet, "/api/v1/workouts", params, nil)
	if err != nil {
		return nil, err
	}

	var records []models.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("httpclient: decode workouts: %w", err)
	}
	return records, nil
}

func (c *HTTPClient) GetWorkout(ctx context.Context, id string) (*models.Record, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/workouts/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeRecord(body)
}

func (c *HTTPClient) LogWorkout(ctx context.Context, req form.Request) (*models.Record, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/v1/workouts", nil, req)
	return decodeWritten(body, err)
}

func (c *HTTPClient) UpdateWorkout(ctx context.Context, id string, p tracker.Patch) (*models.Record, error) {
	body, err := c.do(ctx, http.MethodPatch, "/api/v1/workouts/"+url.PathEscape(id), nil, p)
	return decodeWritten(body, err)
}

// decodeWritten decodes the record of a write, keeping an unsaved warning
// alongside it.
func decodeWritten(body []byte, err error) (*models.Record, error) {
	if err != nil && !isWriteError(err) {
		return nil, err
	}
	rec, decErr := decodeRecord(body)
	if decErr != nil {
		return nil, decErr
	}
	return rec, err
}

func (c *HTTPClient) DeleteWorkout(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/workouts/"+url.PathEscape(id), nil, nil)
	return err
}

func decodeRecord(body []byte) (*models.Record, error) {
	var rec models.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("httpclient: decode workout: %w", err)
	}
	return &rec, nil
}
