package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/ethicsd/internal/entity"
)

func TestNewAnthropicClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg:  Config{APIKey: "sk-ant-test123"},
		},
		{
			name:    "empty API key",
			cfg:     Config{Model: "claude-3-5-sonnet-20241022"},
			wantErr: true,
		},
		{
			name: "custom timeouts and limits",
			cfg: Config{
				APIKey:      "sk-ant-test123",
				SoftTimeout: 2 * time.Minute,
				MaxRetries:  5,
				RateLimit:   2.0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newAnthropicClient(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newAnthropicClient() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !client.Available() {
				t.Error("configured client should be available")
			}
		})
	}
}

// anthropicStub returns a Claude-shaped response with the given text.
func anthropicStub(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"id":      "msg_test",
			"type":    "message",
			"role":    "assistant",
			"model":   "claude-3-5-sonnet-20241022",
			"content": []map[string]string{{"type": "text", "text": text}},
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestAnthropicClientExtract(t *testing.T) {
	payload := `{"entities": [{"label": "Verify AI output", "definition": "Check model output before signing off.", "attributes": {"tag": "verify_before_certify"}}]}`
	server := httptest.NewServer(anthropicStub(payload))
	defer server.Close()

	client, err := newAnthropicClient(Config{
		APIKey:    "sk-ant-test",
		BaseURL:   server.URL,
		RateLimit: 1000, // don't throttle tests
		Burst:     1000,
	})
	if err != nil {
		t.Fatalf("newAnthropicClient() error = %v", err)
	}

	result, err := client.Extract(context.Background(), "extract obligations", ConceptSchema{Type: entity.TypeObligation})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(result.Entities) != 1 {
		t.Fatalf("Extract() returned %d entities, want 1", len(result.Entities))
	}
	if result.Entities[0].Attributes["tag"] != "verify_before_certify" {
		t.Errorf("entity attributes = %v", result.Entities[0].Attributes)
	}
	if result.RawResponse == "" {
		t.Error("raw response must be preserved for provenance")
	}
}

func TestAnthropicClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "boom")
			return
		}
		anthropicStub(`{"entities": []}`)(w, r)
	}))
	defer server.Close()

	client, err := newAnthropicClient(Config{
		APIKey:    "sk-ant-test",
		BaseURL:   server.URL,
		RateLimit: 1000,
		Burst:     1000,
	})
	if err != nil {
		t.Fatalf("newAnthropicClient() error = %v", err)
	}
	client.baseBackoff = time.Millisecond

	_, err = client.Extract(context.Background(), "extract", ConceptSchema{Type: entity.TypeRole})
	if err != nil {
		t.Fatalf("Extract() after retries error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestAnthropicClientNonRetryableError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"type": "error", "error": {"type": "invalid_request_error", "message": "bad request"}}`)
	}))
	defer server.Close()

	client, err := newAnthropicClient(Config{
		APIKey:    "sk-ant-test",
		BaseURL:   server.URL,
		RateLimit: 1000,
		Burst:     1000,
	})
	if err != nil {
		t.Fatalf("newAnthropicClient() error = %v", err)
	}

	_, err = client.Extract(context.Background(), "extract", ConceptSchema{Type: entity.TypeRole})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("client error retried: %d calls, want 1", got)
	}
}

func TestAnthropicClientSoftTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		anthropicStub(`{"entities": []}`)(w, r)
	}))
	defer server.Close()

	client, err := newAnthropicClient(Config{
		APIKey:      "sk-ant-test",
		BaseURL:     server.URL,
		SoftTimeout: 50 * time.Millisecond,
		RateLimit:   1000,
		Burst:       1000,
	})
	if err != nil {
		t.Fatalf("newAnthropicClient() error = %v", err)
	}

	_, err = client.Extract(context.Background(), "extract", ConceptSchema{Type: entity.TypeAction})
	if !errors.Is(err, ErrSoftTimeout) {
		t.Errorf("Extract() error = %v, want ErrSoftTimeout", err)
	}
}

func TestAnthropicClientSynthesizeDecision(t *testing.T) {
	payload := `{"focus_description": "Verification vs deadline", "decision_question": "Should the engineer certify?", "options": [{"description": "Delay and verify", "moral_intensity_score": 0.6}]}`
	server := httptest.NewServer(anthropicStub(payload))
	defer server.Close()

	client, err := newAnthropicClient(Config{
		APIKey:    "sk-ant-test",
		BaseURL:   server.URL,
		RateLimit: 1000,
		Burst:     1000,
	})
	if err != nil {
		t.Fatalf("newAnthropicClient() error = %v", err)
	}

	raw, err := client.SynthesizeDecision(context.Background(), "synthesize")
	if err != nil {
		t.Fatalf("SynthesizeDecision() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded["focus_description"] == "" {
		t.Error("payload missing focus_description")
	}
}
