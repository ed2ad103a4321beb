// Package storage removes marketplace images from Supabase Storage.
// Uploads happen client-side; the API only records and cleans up paths.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotaclub/rota/internal/config"
	"github.com/tidwall/gjson"
)

// ErrNotConfigured is returned by Noop deletes
var ErrNotConfigured = errors.New("object storage not configured")

// Remover deletes stored objects
type Remover interface {
	Remove(ctx context.Context, refs ...string) error
}

// Client talks to the Supabase Storage REST API
type Client struct {
	baseURL string
	apiKey  string
	bucket  string
	client  *http.Client
}

// New returns a storage client behind a circuit breaker, or Noop when the
// project URL is unset
func New(cfg *config.StorageConfig) Remover {
	if cfg.ProjectURL == "" || cfg.APIKey == "" {
		return Noop{}
	}
	return NewBreaker(NewClient(cfg), nil)
}

// NewClient returns an unguarded storage client
func NewClient(cfg *config.StorageConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.ProjectURL, "/"),
		apiKey:  cfg.APIKey,
		bucket:  cfg.Bucket,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// ObjectPath converts a public object URL, or a bare path, into a path inside bucket
func ObjectPath(ref, bucket string) string {
	ref = strings.TrimSpace(ref)
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		ref = u.Path
	}
	for _, prefix := range []string{
		"/storage/v1/object/public/" + bucket + "/",
		"/storage/v1/object/" + bucket + "/",
		bucket + "/",
		"/",
	} {
		if strings.HasPrefix(ref, prefix) {
			ref = strings.TrimPrefix(ref, prefix)
			break
		}
	}
	return ref
}

// Remove deletes objects referenced by public URL or path
func (c *Client) Remove(ctx context.Context, refs ...string) error {
	paths := make([]string, 0, len(refs))
	for _, r := range refs {
		if p := ObjectPath(r, c.bucket); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil
	}

	body, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/storage/v1/object/"+url.PathEscape(c.bucket), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete objects: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		msg := gjson.GetBytes(raw, "message").String()
		if msg == "" {
			msg = gjson.GetBytes(raw, "error").String()
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("storage delete failed (%d): %s", resp.StatusCode, msg)
	}
	return nil
}

// Noop is used when storage is not configured
type Noop struct{}

func (Noop) Remove(ctx context.Context, refs ...string) error {
	if len(refs) == 0 {
		return nil
	}
	return ErrNotConfigured
}
