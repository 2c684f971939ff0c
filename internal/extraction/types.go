package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ethicsd/internal/entity"
)

// ConceptSchema describes the shape an extraction response must satisfy
// for one concept type.
type ConceptSchema struct {
	Type entity.ExtractionType `json:"type"`

	// RequiredAttributes are attribute keys every returned entity must
	// carry for this concept type (e.g. a time window for events).
	RequiredAttributes []string `json:"required_attributes,omitempty"`
}

// RawEntity is one entity as returned by the LLM, before it becomes a
// candidate entity in the store.
type RawEntity struct {
	Label      string            `json:"label"`
	Definition string            `json:"definition"`
	SourceSpan string            `json:"source_span,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Result is the outcome of one extraction call.
type Result struct {
	Entities    []RawEntity `json:"entities"`
	RawResponse string      `json:"raw_response"`
	Model       string      `json:"model"`
}

// Extractor extracts entities of one concept type from a prompt.
type Extractor interface {
	// Extract runs one LLM call and validates the response against schema.
	Extract(ctx context.Context, prompt string, schema ConceptSchema) (Result, error)

	// Available returns true if the extractor is configured and ready.
	Available() bool
}

// GenerativeClient produces a decision-point-shaped payload from a
// committed-entity context. The caller validates the payload before
// persisting anything.
type GenerativeClient interface {
	SynthesizeDecision(ctx context.Context, prompt string) (json.RawMessage, error)
}

// Config holds the extraction client configuration.
type Config struct {
	Model   string `json:"model,omitempty"`
	APIKey  string `json:"-"`
	BaseURL string `json:"base_url,omitempty"`

	MaxTokens   int           `json:"max_tokens,omitempty"`
	SoftTimeout time.Duration `json:"soft_timeout,omitempty"`
	MaxRetries  int           `json:"max_retries,omitempty"`
	RateLimit   float64       `json:"rate_limit,omitempty"`
	Burst       int           `json:"burst,omitempty"`
}

// New creates an extractor for the given provider.
func New(provider string, cfg Config) (Extractor, error) {
	switch provider {
	case "disabled":
		return &NoOpExtractor{}, nil
	case "anthropic":
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unknown extraction provider: %s", provider)
	}
}

// NoOpExtractor returns empty results. Used when extraction is disabled.
type NoOpExtractor struct{}

// Extract returns an empty result.
func (n *NoOpExtractor) Extract(_ context.Context, _ string, _ ConceptSchema) (Result, error) {
	return Result{Model: "noop"}, nil
}

// Available returns false for NoOpExtractor.
func (n *NoOpExtractor) Available() bool {
	return false
}

var _ Extractor = (*NoOpExtractor)(nil)
