package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/drawmap/backend/internal/models"
)

// Client implements Store over the HTTP protocol exposed by the store
// endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL (e.g.
// "http://store.internal:8089").
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// List fetches the full keyed dataset.
func (c *Client) List(ctx context.Context) (map[string]json.RawMessage, error) {
	var out map[string]json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/store", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get reads a single key. A missing key is returned as nil, not an error.
func (c *Client) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var out struct {
		Value json.RawMessage `json:"value"`
	}
	err := c.do(ctx, http.MethodGet, "/api/store/"+url.PathEscape(key), nil, &out)
	if err != nil {
		var pe *ProtocolError
		if errors.As(err, &pe) && pe.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return out.Value, nil
}

// Set writes a single key.
func (c *Client) Set(ctx context.Context, key string, value json.RawMessage) error {
	body := map[string]json.RawMessage{"value": value}
	return c.do(ctx, http.MethodPut, "/api/store/"+url.PathEscape(key), body, nil)
}

// Remove deletes a single key.
func (c *Client) Remove(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/api/store/"+url.PathEscape(key), nil, nil)
}

// Migrate bulk-imports a legacy keyed payload.
func (c *Client) Migrate(ctx context.Context, payload map[string]json.RawMessage) (*MigrateResult, error) {
	var out MigrateResult
	if err := c.do(ctx, http.MethodPost, "/api/store/migrate", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveImage associates an attachment with an entity key. A response without
// an image leaves the result nil so callers keep their optimistic
// placeholder.
func (c *Client) SaveImage(ctx context.Context, req ImageRequest) (*models.Image, error) {
	var out struct {
		Image *models.Image `json:"image"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/store/image", req, &out); err != nil {
		return nil, err
	}
	return out.Image, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		pe := &ProtocolError{Status: resp.StatusCode, Code: "REMOTE_ERROR"}
		if err := json.Unmarshal(data, pe); err != nil || pe.Message == "" {
			pe.Message = http.StatusText(resp.StatusCode)
		}
		return pe
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
