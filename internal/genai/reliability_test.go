package genai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"
)

// hardFailure builds a non-retryable API error so failing providers are
// abandoned without consuming the retry backoff.
func hardFailure(t *testing.T) error {
	t.Helper()
	httpReq, err := http.NewRequest(http.MethodPost, "http://example.invalid/v1/chat/completions", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	return &openai.Error{StatusCode: 400, Request: httpReq, Response: &http.Response{StatusCode: 400}}
}

func TestReliableFirstProviderWins(t *testing.T) {
	primary := testClient(&mockChatService{resps: []*openai.ChatCompletion{textResponse(plausibleAnswer)}})
	secondary := testClient(&mockChatService{})
	r := NewReliable([]*Provider{{Name: "primary", Client: primary}, {Name: "secondary", Client: secondary}}, nil)

	completion, err := r.Generate(context.Background(), nil, CallOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completion.Text != plausibleAnswer {
		t.Errorf("unexpected text: %q", completion.Text)
	}
}

func TestReliableFallsOverOnFailure(t *testing.T) {
	failing := testClient(&mockChatService{errs: []error{hardFailure(t)}})
	working := testClient(&mockChatService{resps: []*openai.ChatCompletion{textResponse(plausibleAnswer)}})
	r := NewReliable([]*Provider{{Name: "primary", Client: failing}, {Name: "secondary", Client: working}}, nil)

	completion, err := r.Generate(context.Background(), nil, CallOptions{})
	if err != nil {
		t.Fatalf("expected fallover to succeed, got %v", err)
	}
	if completion.Text != plausibleAnswer {
		t.Errorf("unexpected text: %q", completion.Text)
	}
}

func TestReliableAggregatesAllFailures(t *testing.T) {
	first := testClient(&mockChatService{errs: []error{hardFailure(t)}})
	second := testClient(&mockChatService{errs: []error{hardFailure(t)}})
	r := NewReliable([]*Provider{{Name: "a", Client: first}, {Name: "b", Client: second}}, nil)

	_, err := r.Generate(context.Background(), nil, CallOptions{})
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Error("aggregate error must carry the individual provider failures")
	}
}

func TestReliableSkipsUnavailableProvider(t *testing.T) {
	// The skipped provider's mock would panic if called with no responses.
	down := testClient(&mockChatService{})
	up := testClient(&mockChatService{resps: []*openai.ChatCompletion{textResponse(plausibleAnswer)}})

	health := NewHealthRegistry([]string{"down", "up"}, time.Minute)
	health.markAvailability("down", false, "probe failed")

	r := NewReliable([]*Provider{{Name: "down", Client: down}, {Name: "up", Client: up}}, health)
	completion, err := r.Generate(context.Background(), nil, CallOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completion.Text != plausibleAnswer {
		t.Errorf("unexpected text: %q", completion.Text)
	}
}

func TestReliableAllUnavailable(t *testing.T) {
	health := NewHealthRegistry([]string{"only"}, time.Minute)
	health.markAvailability("only", false, "probe failed")

	r := NewReliable([]*Provider{{Name: "only", Client: testClient(&mockChatService{})}}, health)
	_, err := r.Generate(context.Background(), nil, CallOptions{})
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "marked unavailable") {
		t.Errorf("skip reason missing from aggregate error: %v", err)
	}
}

func TestReliableNoProviders(t *testing.T) {
	r := NewReliable(nil, nil)
	if _, err := r.Generate(context.Background(), nil, CallOptions{}); !errors.Is(err, ErrAllProvidersFailed) {
		t.Errorf("expected ErrAllProvidersFailed, got %v", err)
	}
}
