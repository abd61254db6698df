package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/planforge/planforge/internal/genai"
	"github.com/planforge/planforge/internal/models"
	"github.com/planforge/planforge/internal/store"
)

// mockProcessor implements turnProcessor.
type mockProcessor struct {
	resp *models.ChatResponse
	err  error
	last *models.ChatRequest
}

func (m *mockProcessor) ProcessTurn(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	m.last = req
	return m.resp, m.err
}

// mockAnalyzer implements siteAnalyzer.
type mockAnalyzer struct {
	analysis *models.WebsiteAnalysis
	err      error
}

func (m *mockAnalyzer) Analyze(ctx context.Context, rawURL string) (*models.WebsiteAnalysis, error) {
	return m.analysis, m.err
}

func TestChatHandlerSuccess(t *testing.T) {
	processor := &mockProcessor{resp: &models.ChatResponse{
		Message:        "**Question 1: Business Overview**\nTell me about your business.",
		ContextSummary: models.NewContextSummary(),
	}}
	server := NewServer(processor, "")

	body := `{"messages":[],"currentStep":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !strings.HasPrefix(resp.Message, "**Question 1:") {
		t.Errorf("unexpected message: %q", resp.Message)
	}
	if resp.ContextSummary == nil {
		t.Error("context summary missing from response")
	}
	if processor.last == nil || processor.last.CurrentStep != 1 {
		t.Errorf("request not passed through: %+v", processor.last)
	}
}

func TestChatHandlerFallbackOutcomeIs200(t *testing.T) {
	processor := &mockProcessor{resp: &models.ChatResponse{
		Message:        "**Question 2: Pain Points**\nWhat slows you down?",
		ContextSummary: models.NewContextSummary(),
		Fallback:       true,
	}}
	server := NewServer(processor, "")

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":[]}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("fallback outcome must be 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"fallback":true`) {
		t.Errorf("fallback flag missing: %s", rec.Body.String())
	}
}

func TestChatHandlerUnparseableBody(t *testing.T) {
	server := NewServer(&mockProcessor{}, "")
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unparseable body, got %d", rec.Code)
	}
}

func TestChatHandlerInvalidTurnRole(t *testing.T) {
	server := NewServer(&mockProcessor{}, "")
	body := `{"messages":[{"role":"system","content":"x"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid turn role, got %d", rec.Code)
	}
}

func TestChatHandlerMethodNotAllowed(t *testing.T) {
	server := NewServer(&mockProcessor{}, "")
	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestAnalyzeWebsiteHandler(t *testing.T) {
	analyzer := &mockAnalyzer{analysis: &models.WebsiteAnalysis{
		URL:          "https://rosies.example",
		BusinessType: "bakery",
	}}
	server := NewServer(&mockProcessor{}, "", WithAnalyzer(analyzer))

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-website", strings.NewReader(`{"url":"rosies.example"}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"bakery"`) {
		t.Errorf("analysis missing from response: %s", rec.Body.String())
	}
}

func TestAnalyzeWebsiteHandlerMissingURL(t *testing.T) {
	server := NewServer(&mockProcessor{}, "", WithAnalyzer(&mockAnalyzer{}))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze-website", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing url, got %d", rec.Code)
	}
}

func TestAnalyzeWebsiteHandlerFetchFailure(t *testing.T) {
	server := NewServer(&mockProcessor{}, "", WithAnalyzer(&mockAnalyzer{err: errors.New("fetch failed")}))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze-website", strings.NewReader(`{"url":"x.example"}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for analysis failure, got %d", rec.Code)
	}
}

func TestConversationHandler(t *testing.T) {
	st := store.NewInMemoryStore()
	if err := st.CreateConversation(models.Conversation{ID: "c1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.SaveMessage(models.Message{ConversationID: "c1", Role: models.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.SaveContext("c1", `{"businessType":"bakery"}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	server := NewServer(&mockProcessor{}, "", WithStore(st))

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/c1", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"c1"`) || !strings.Contains(body, `"bakery"`) {
		t.Errorf("conversation detail incomplete: %s", body)
	}
}

func TestConversationHandlerNotFound(t *testing.T) {
	server := NewServer(&mockProcessor{}, "", WithStore(store.NewInMemoryStore()))
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/nope", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	health := genai.NewHealthRegistry([]string{"primary"}, time.Minute)
	server := NewServer(&mockProcessor{}, "", WithHealthRegistry(health))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status healthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if status.Status != "ok" || !status.Providers["primary"] {
		t.Errorf("unexpected health payload: %+v", status)
	}
}
