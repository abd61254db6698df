package genai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/pagination"
)

// mockModelService implements modelService.
type mockModelService struct {
	err   error
	calls int
}

func (m *mockModelService) List(ctx context.Context, opts ...option.RequestOption) (*pagination.Page[openai.Model], error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &pagination.Page[openai.Model]{}, nil
}

// recordingLogger implements HealthLogger.
type recordingLogger struct {
	components []string
	healthy    []bool
}

func (l *recordingLogger) LogSystemHealth(component string, healthy bool, detail string) error {
	l.components = append(l.components, component)
	l.healthy = append(l.healthy, healthy)
	return nil
}

func TestHealthRegistryStartsAvailable(t *testing.T) {
	r := NewHealthRegistry([]string{"primary", "fallback"}, time.Minute)
	if !r.Available("primary") || !r.Available("fallback") {
		t.Error("all providers must start available")
	}
	if !r.Available("unknown") {
		t.Error("unknown providers must be treated as available")
	}
}

func TestHealthRegistryMarkAndSnapshot(t *testing.T) {
	r := NewHealthRegistry([]string{"primary"}, time.Minute)
	r.markAvailability("primary", false, "probe failed")

	if r.Available("primary") {
		t.Error("provider must be unavailable after a failed observation")
	}
	snapshot := r.Snapshot()
	if snapshot["primary"] {
		t.Error("snapshot must reflect unavailability")
	}

	// Mutating the snapshot must not affect the registry.
	snapshot["primary"] = true
	if r.Available("primary") {
		t.Error("snapshot must be a copy")
	}

	r.markAvailability("primary", true, "")
	if !r.Available("primary") {
		t.Error("provider must recover after a successful observation")
	}
}

func TestHealthRegistryPersistsObservations(t *testing.T) {
	logger := &recordingLogger{}
	r := NewHealthRegistry([]string{"primary"}, time.Minute)
	r.SetLogger(logger)

	r.markAvailability("primary", false, "probe failed")
	r.markAvailability("primary", true, "")

	if len(logger.components) != 2 || logger.components[0] != "primary" {
		t.Fatalf("observations not persisted: %+v", logger.components)
	}
	if logger.healthy[0] || !logger.healthy[1] {
		t.Errorf("healthy flags not persisted in order: %v", logger.healthy)
	}
}

func TestCheckOnceMarksFailingProvider(t *testing.T) {
	okModels := &mockModelService{}
	badModels := &mockModelService{err: errors.New("connection refused")}

	okClient := testClient(&mockChatService{})
	okClient.models = okModels
	badClient := testClient(&mockChatService{})
	badClient.models = badModels

	r := NewHealthRegistry([]string{"ok", "bad"}, time.Minute)
	r.checkOnce(context.Background(), []*Provider{
		{Name: "ok", Client: okClient},
		{Name: "bad", Client: badClient},
	})

	if !r.Available("ok") {
		t.Error("healthy provider marked unavailable")
	}
	if r.Available("bad") {
		t.Error("failing provider still marked available")
	}
	if okModels.calls != 1 || badModels.calls != 1 {
		t.Errorf("expected one ping per provider, got %d and %d", okModels.calls, badModels.calls)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	r := NewHealthRegistry([]string{"p"}, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx, nil)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}
