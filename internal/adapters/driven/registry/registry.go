// Package registry reads the remote package index and downloads package
// artifacts through the shared HTTP client.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/logger"
)

// Client implements driven.RegistryClient.
type Client struct {
	indexURL *url.URL
	http     driven.HTTPClient
}

var _ driven.RegistryClient = (*Client)(nil)

// New creates a registry client for the index at indexURL.
func New(indexURL string, client driven.HTTPClient) (*Client, error) {
	if client == nil {
		return nil, fmt.Errorf("registry: http client: %w", domain.ErrInvalidInput)
	}
	u, err := url.Parse(indexURL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("registry: index url %q: %w", indexURL, domain.ErrInvalidInput)
	}
	return &Client{indexURL: u, http: client}, nil
}

// FetchIndex downloads and decodes the index. Records that fail
// validation are skipped and logged.
func (c *Client) FetchIndex(ctx context.Context) ([]domain.RegistryRecord, error) {
	resp, err := c.http.Do(ctx, &driven.HTTPRequest{
		URL:     c.indexURL.String(),
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch registry index: %w", err)
	}

	var raw []domain.RegistryRecord
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, domain.ParseError("registry index", err)
	}

	records := make([]domain.RegistryRecord, 0, len(raw))
	for _, rec := range raw {
		if err := rec.Validate(); err != nil {
			logger.Warn("registry: skipping %q: %v", rec.PkgName, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// FetchArtifact downloads rawURL, resolving it against the index URL when
// relative.
func (c *Client) FetchArtifact(ctx context.Context, rawURL string) ([]byte, error) {
	target, err := c.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(ctx, &driven.HTTPRequest{URL: target})
	if err != nil {
		return nil, fmt.Errorf("fetch artifact: %w", err)
	}
	return resp.Body, nil
}

func (c *Client) resolve(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("artifact url: %w", domain.ErrInvalidInput)
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("artifact url %q: %w", rawURL, domain.ErrInvalidInput)
	}
	return c.indexURL.ResolveReference(ref).String(), nil
}
