// Package client is the Go client for the boqops REST API. It owns the
// request plumbing every dashboard page shares: bearer-token injection,
// the forced-logout contract on expired credentials, and decoding of
// JSON, raw-text and empty responses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// TokenStore supplies and clears the stored bearer token. Injected so the
// client never touches ambient storage directly.
type TokenStore interface {
	Token() string
	Clear()
}

// Navigator is the forced-logout capability: called when the backend says
// the credentials are no longer valid.
type Navigator interface {
	RedirectToLogin()
}

// MemoryTokenStore is a TokenStore backed by process memory.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

func (s *MemoryTokenStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *MemoryTokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *MemoryTokenStore) Clear() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// expiredDetail matches backend detail strings that mean the stored token
// is no longer usable, even when the status code is not 401/403.
var expiredDetail = regexp.MustCompile(`(?i)(invalid|expired|unauthorized).*(token|session|key)|unauthorized`)

// Client issues authenticated requests against a boqops backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Tokens  TokenStore
	Nav     Navigator
	Log     zerolog.Logger
}

// New creates a Client with the default http.Client and a no-op logger.
func New(baseURL string, tokens TokenStore, nav Navigator) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{},
		Tokens:  tokens,
		Nav:     nav,
		Log:     zerolog.Nop(),
	}
}

// Call issues a request and decodes the response.
//
// body: nil for none, []byte sent raw, anything else JSON-encoded.
// out: nil to discard, *string to receive non-JSON text, *[]byte to receive
// raw bytes, anything else JSON-decoded.
//
// 401/403, or any error detail matching the invalid/expired-token pattern,
// clears the token store, triggers the login redirect and returns
// ErrUnauthorized. Other non-2xx statuses return *APIError.
func (c *Client) Call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := c.Tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.decode(resp, out)
}

func (c *Client) decode(resp *http.Response, out interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.forceLogout(resp.Request.URL.Path)
		return ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp.StatusCode, data)
		if expiredDetail.MatchString(apiErr.Detail) {
			c.forceLogout(resp.Request.URL.Path)
			return ErrUnauthorized
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil
	}

	switch v := out.(type) {
	case *[]byte:
		*v = data
		return nil
	case *string:
		*v = string(data)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		// not JSON; callers wanting raw text pass *string
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) forceLogout(path string) {
	c.Log.Warn().Str("path", path).Msg("credentials rejected, forcing logout")
	c.Tokens.Clear()
	if c.Nav != nil {
		c.Nav.RedirectToLogin()
	}
}

// envelope mirrors the backend's APIResponse wrapper.
type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta *struct {
		Total int `json:"total"`
		Page  int `json:"page"`
		Limit int `json:"limit"`
	} `json:"meta"`
}

// List fetches one page of a collection endpoint, decoding the data array
// into out and returning the total record count from the meta block.
func (c *Client) List(ctx context.Context, path string, query url.Values, out interface{}) (total int, err error) {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var env envelope
	if err := c.Call(ctx, http.MethodGet, path, nil, &env); err != nil {
		return 0, err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return 0, fmt.Errorf("decode list data: %w", err)
		}
	}
	if env.Meta != nil {
		total = env.Meta.Total
	}
	return total, nil
}

// FetchCSV retrieves an endpoint that returns raw CSV text.
func (c *Client) FetchCSV(ctx context.Context, path string) (string, error) {
	var text string
	if err := c.Call(ctx, http.MethodGet, path, nil, &text); err != nil {
		return "", err
	}
	return text, nil
}

// BulkSummary reports the outcome of a bulk workbook export.
type BulkSummary struct {
	Succeeded int
	Failed    int
	FailedIDs []string
}

// DownloadWorkbook posts a grid payload and returns the workbook bytes.
func (c *Client) DownloadWorkbook(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.Tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out []byte
	if err := c.decode(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DownloadWorkbookBulk posts an array of grid payloads and returns one
// combined workbook plus the partial-failure summary carried in the
// response headers.
func (c *Client) DownloadWorkbookBulk(ctx context.Context, path string, payloads interface{}) ([]byte, BulkSummary, error) {
	var summary BulkSummary
	data, err := json.Marshal(payloads)
	if err != nil {
		return nil, summary, fmt.Errorf("encode payloads: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, summary, err
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.Tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, summary, err
	}
	defer resp.Body.Close()

	summary.Succeeded, _ = strconv.Atoi(resp.Header.Get("X-Success-Count"))
	summary.Failed, _ = strconv.Atoi(resp.Header.Get("X-Failed-Count"))
	if ids := resp.Header.Get("X-Failed-Records"); ids != "" {
		summary.FailedIDs = strings.Split(ids, ",")
	}

	var out []byte
	if err := c.decode(resp, &out); err != nil {
		return nil, summary, err
	}
	return out, summary, nil
}

// UploadCSV uploads a CSV file as multipart form data. Files without a
// .csv extension are rejected before any network request is made.
func (c *Client) UploadCSV(ctx context.Context, path, filename string, content []byte) error {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return fmt.Errorf("%w: %q", ErrNotCSV, filename)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := fw.Write(content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if tok := c.Tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.decode(resp, nil)
}
