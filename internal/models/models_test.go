package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestConversationTurnValidate(t *testing.T) {
	cases := []struct {
		name string
		turn ConversationTurn
		want error
	}{
		{"valid user turn", ConversationTurn{Role: RoleUser, Content: "hi"}, nil},
		{"valid assistant turn", ConversationTurn{Role: RoleAssistant, Content: "hello"}, nil},
		{"bad role", ConversationTurn{Role: "system", Content: "x"}, ErrInvalidRole},
		{"empty content", ConversationTurn{Role: RoleUser}, ErrEmptyTurnContent},
		{"oversized content", ConversationTurn{Role: RoleUser, Content: strings.Repeat("a", MaxTurnContentLength+1)}, ErrTurnContentTooLong},
	}
	for _, tc := range cases {
		if err := tc.turn.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: Validate = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestChatRequestValidate(t *testing.T) {
	req := ChatRequest{Messages: []ConversationTurn{{Role: RoleUser, Content: "hi"}}}
	if err := req.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	tooMany := ChatRequest{Messages: make([]ConversationTurn, MaxTurnCount+1)}
	for i := range tooMany.Messages {
		tooMany.Messages[i] = ConversationTurn{Role: RoleUser, Content: "x"}
	}
	if err := tooMany.Validate(); !errors.Is(err, ErrTooManyTurns) {
		t.Errorf("expected ErrTooManyTurns, got %v", err)
	}

	bigFile := ChatRequest{AttachedFiles: []AttachedFile{{Name: "f", Content: strings.Repeat("a", MaxAttachedFileLength+1)}}}
	if err := bigFile.Validate(); !errors.Is(err, ErrAttachmentTooLong) {
		t.Errorf("expected ErrAttachmentTooLong, got %v", err)
	}
}

func TestNewContextSummaryAllPlaceholders(t *testing.T) {
	s := NewContextSummary()
	for _, v := range []string{s.BusinessType, s.PainPoints, s.Goals, s.DataAvailable, s.PriorTechUse, s.GrowthIntent} {
		if v != PlaceholderValue {
			t.Errorf("field not initialized to placeholder: %q", v)
		}
	}
}

func TestIsPlaceholder(t *testing.T) {
	if !IsPlaceholder("") || !IsPlaceholder(PlaceholderValue) {
		t.Error("empty and sentinel values must be placeholders")
	}
	if IsPlaceholder("bakery") {
		t.Error("real values must not be placeholders")
	}
}

func TestContextSummaryJSONRoundTrip(t *testing.T) {
	s := NewContextSummary()
	s.BusinessType = "bakery"

	raw, err := s.ToJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var back ContextSummary
	if err := back.FromJSON(raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.BusinessType != "bakery" || back.Goals != PlaceholderValue {
		t.Errorf("round trip lost fields: %+v", back)
	}
}

func TestContextSummaryFromJSONPartial(t *testing.T) {
	var s ContextSummary
	if err := s.FromJSON(`{"painPoints":"order tracking"}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.PainPoints != "order tracking" {
		t.Errorf("present field not decoded: %q", s.PainPoints)
	}
	if s.BusinessType != PlaceholderValue {
		t.Errorf("absent field must default to placeholder: %q", s.BusinessType)
	}
}

func TestChatResponseFieldNames(t *testing.T) {
	resp := ChatResponse{
		Message:              "hi",
		ContextSummary:       NewContextSummary(),
		Fallback:             true,
		BusinessPlanMarkdown: "# Plan",
		IsBusinessPlan:       true,
		PlanHighlights:       []string{"Quick Wins"},
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, field := range []string{`"message"`, `"contextSummary"`, `"fallback"`, `"businessPlanMarkdown"`, `"isBusinessPlan"`, `"planHighlights"`} {
		if !strings.Contains(string(raw), field) {
			t.Errorf("wire field %s missing from %s", field, raw)
		}
	}
}

func TestStepKinds(t *testing.T) {
	for s := StepMin; s <= StepFinalQuestion; s++ {
		if !s.IsQuestion() || s.IsSummary() {
			t.Errorf("step %d misclassified", s)
		}
	}
	if StepSummary.IsQuestion() || !StepSummary.IsSummary() {
		t.Error("summary step misclassified")
	}
}
