// Package api provides HTTP handlers for PlanForge endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/planforge/planforge/internal/models"
)

// chatHandler processes one discovery conversation turn. Every handled
// outcome, including degraded and fallback paths, returns HTTP 200 with the
// outcome encoded in the body; 400 is reserved for requests the server
// cannot parse or validate.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.chatHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	resp, err := s.processor.ProcessTurn(r.Context(), &req)
	if err != nil {
		// ProcessTurn errors only on unusable requests; everything the flow
		// can handle degrades in-body instead.
		slog.Warn("Server.chatHandler: turn rejected", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	slog.Info("Server.chatHandler: turn processed",
		"messages", len(req.Messages),
		"fallback", resp.Fallback,
		"isBusinessPlan", resp.IsBusinessPlan)
	writeJSONResponse(w, http.StatusOK, resp)
}

// analyzeWebsiteRequest is the payload posted to /api/analyze-website.
type analyzeWebsiteRequest struct {
	URL string `json:"url"`
}

func (s *Server) analyzeWebsiteHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.analyzeWebsiteHandler: processing analyze request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.analyzer == nil {
		writeJSONResponse(w, http.StatusNotImplemented, models.Error("Website analysis is not enabled"))
		return
	}

	var req analyzeWebsiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.analyzeWebsiteHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.URL == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("url is required"))
		return
	}

	analysis, err := s.analyzer.Analyze(r.Context(), req.URL)
	if err != nil {
		slog.Warn("Server.analyzeWebsiteHandler: analysis failed", "url", req.URL, "error", err)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Failed to analyze website"))
		return
	}

	slog.Info("Server.analyzeWebsiteHandler: website analyzed", "url", analysis.URL, "businessType", analysis.BusinessType)
	writeJSONResponse(w, http.StatusOK, models.Success(analysis))
}

// conversationDetail is the retrieval payload for one conversation.
type conversationDetail struct {
	Conversation *models.Conversation   `json:"conversation"`
	Messages     []models.Message       `json:"messages"`
	Context      *models.ContextSummary `json:"context,omitempty"`
	Plan         *models.BusinessPlan   `json:"plan,omitempty"`
}

func (s *Server) conversationHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.conversationHandler: processing retrieval", "path", r.URL.Path)
	if s.store == nil {
		writeJSONResponse(w, http.StatusNotImplemented, models.Error("Conversation storage is not enabled"))
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("conversation id is required"))
		return
	}

	conversation, err := s.store.GetConversation(id)
	if err != nil || conversation == nil {
		slog.Warn("Server.conversationHandler: conversation not found", "id", id, "error", err)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}

	detail := conversationDetail{Conversation: conversation}
	if detail.Messages, err = s.store.ListMessages(id); err != nil {
		slog.Warn("Server.conversationHandler: failed to list messages", "id", id, "error", err)
	}
	if raw, err := s.store.GetContext(id); err == nil && raw != "" {
		summary := models.NewContextSummary()
		if err := summary.FromJSON(raw); err == nil {
			detail.Context = summary
		}
	}
	if plan, err := s.store.GetBusinessPlan(id); err == nil && plan != nil {
		detail.Plan = plan
	}

	writeJSONResponse(w, http.StatusOK, models.Success(detail))
}

// healthStatus is the health endpoint payload.
type healthStatus struct {
	Status    string          `json:"status"`
	Providers map[string]bool `json:"providers,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{Status: "ok"}
	if s.health != nil {
		status.Providers = s.health.Snapshot()
	}
	writeJSONResponse(w, http.StatusOK, status)
}
