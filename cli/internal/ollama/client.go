// Package ollama checks that a local Ollama server can serve the configured
// model. Generation itself goes through the provider package.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
)

const _defaultTimeout = 10 * time.Second

// ErrUnreachable indicates the server could not be reached or answered non-2xx.
var ErrUnreachable = errors.New("ollama server unreachable")

// Client talks to the Ollama HTTP API. Use NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Status describes a reachable server.
type Status struct {
	Version      string   // empty when /api/version is not served
	ModelPresent bool     // the requested model is pulled
	Models       []string // pulled model names, for diagnostics
}

// NewClient builds a client for baseURL (e.g. http://localhost:11434).
// A nil httpClient gets a 10s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: _defaultTimeout}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: httpClient}
}

// Check lists pulled models via /api/tags and reports whether model is among
// them. A model given without a tag matches its ":latest" variant.
func (c *Client) Check(ctx context.Context, model string) (*Status, error) {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.get(ctx, "/api/tags", &tags); err != nil {
		return nil, err
	}
	st := &Status{Models: make([]string, 0, len(tags.Models))}
	for _, m := range tags.Models {
		st.Models = append(st.Models, m.Name)
	}
	st.ModelPresent = slices.ContainsFunc(st.Models, func(name string) bool {
		return sameModel(name, model)
	})

	var ver struct {
		Version string `json:"version"`
	}
	if err := c.get(ctx, "/api/version", &ver); err == nil {
		st.Version = ver.Version
	}
	return st, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("ollama %s request: %w", path, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s: %w", path, errors.Join(ErrUnreachable, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama %s: %w: HTTP %d", path, ErrUnreachable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama %s: parse response: %w", path, err)
	}
	return nil
}

func sameModel(pulled, want string) bool {
	if pulled == want {
		return true
	}
	if !strings.Contains(want, ":") {
		return pulled == want+":latest"
	}
	return false
}
