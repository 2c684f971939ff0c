package ontology

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Class is one ontology class the catalog offers for a category.
type Class struct {
	URI   string `json:"uri"`
	Label string `json:"label"`
}

// Catalog lists ontology classes by category.
type Catalog interface {
	// ListClasses returns the classes for a category (e.g. "obligation").
	ListClasses(ctx context.Context, category string) ([]Class, error)
}

// StaticCatalog serves a fixed class set. Used for tests and offline runs.
type StaticCatalog struct {
	Classes map[string][]Class
}

// ListClasses returns the configured classes for the category.
func (s *StaticCatalog) ListClasses(_ context.Context, category string) ([]Class, error) {
	return s.Classes[category], nil
}

// HTTPCatalog queries a remote catalog service.
type HTTPCatalog struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPCatalog creates a catalog client for the given base URL.
func NewHTTPCatalog(baseURL string, timeout time.Duration) (*HTTPCatalog, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("ontology base URL required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPCatalog{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// ListClasses fetches classes for a category from the catalog service.
func (c *HTTPCatalog) ListClasses(ctx context.Context, category string) ([]Class, error) {
	endpoint := fmt.Sprintf("%s/classes?category=%s", c.baseURL, url.QueryEscape(category))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var classes []Class
	if err := json.NewDecoder(resp.Body).Decode(&classes); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return classes, nil
}

var _ Catalog = (*StaticCatalog)(nil)
var _ Catalog = (*HTTPCatalog)(nil)
