package sanitize

import (
	"strings"
	"testing"
)

func TestCleanQuestionStripsReasoningBlock(t *testing.T) {
	raw := "<think>The owner runs a bakery, so step 2 should ask about pain points.</think>\n**Question 2: Pain Points**\nWhat parts of running the bakery take up the most time each week?"
	got := CleanQuestion(raw, 2)
	if strings.Contains(got, "<think>") || strings.Contains(got, "bakery, so step 2") {
		t.Errorf("reasoning leaked into cleaned output: %q", got)
	}
	if !strings.HasPrefix(got, "**Question 2: Pain Points**") {
		t.Errorf("expected question header at start, got %q", got)
	}
	if count := strings.Count(got, "Question"); count != 1 {
		t.Errorf("expected exactly one header, found %d in %q", count, got)
	}
}

func TestCleanQuestionReasoningOnlyIsRejected(t *testing.T) {
	raw := "<think>I need to think about what to ask next. The owner mentioned inventory...</think>"
	if got := CleanQuestion(raw, 3); got != "" {
		t.Errorf("expected empty output for reasoning-only response, got %q", got)
	}
}

func TestCleanQuestionUnclosedThinkBlock(t *testing.T) {
	raw := "**Question 4: Operations & Data**\nWhat tools or systems do you use to run the shop day to day?\n<think>maybe I should also ask about"
	got := CleanQuestion(raw, 4)
	if strings.Contains(got, "<think>") || strings.Contains(got, "maybe I should") {
		t.Errorf("truncated reasoning leaked: %q", got)
	}
	if !strings.HasPrefix(got, "**Question 4:") {
		t.Errorf("expected question retained, got %q", got)
	}
}

func TestCleanQuestionRewritesHeaderNumber(t *testing.T) {
	raw := "**Question 5: Goals & Vision**\nWhat would you most like to change about the business over the next year?"
	got := CleanQuestion(raw, 2)
	if !strings.HasPrefix(got, "**Question 2:") {
		t.Errorf("expected header rewritten to current step, got %q", got)
	}
	if strings.Contains(got, "Question 5") {
		t.Errorf("stale step number survived: %q", got)
	}
}

func TestCleanQuestionPreservesPlainHeaderForm(t *testing.T) {
	raw := "Question 3: Customers & Reach\nHow do customers usually find your business, and how do you stay in touch?"
	got := CleanQuestion(raw, 3)
	if !strings.HasPrefix(got, "Question 3:") {
		t.Errorf("expected plain header preserved, got %q", got)
	}
	if strings.HasPrefix(got, "**") {
		t.Errorf("plain header should not become bold: %q", got)
	}
}

func TestCleanQuestionTruncatesAtStopMarker(t *testing.T) {
	raw := "**Question 1: Business Overview**\nTell me about your business and what a typical day looks like for you.\nWait, maybe I should ask about revenue instead. Revenue is more"
	got := CleanQuestion(raw, 1)
	if strings.Contains(got, "Wait,") || strings.Contains(got, "revenue instead") {
		t.Errorf("content after stop marker survived: %q", got)
	}
	if !strings.Contains(got, "typical day") {
		t.Errorf("question body lost: %q", got)
	}
}

func TestCleanQuestionKeepsOnlyFirstOfTwoQuestions(t *testing.T) {
	raw := "**Question 2: Pain Points**\nWhat parts of the business cause the most daily frustration for you and your staff?\n**Question 3: Customers**\nHow do customers find you?"
	got := CleanQuestion(raw, 2)
	if strings.Contains(got, "Question 3") || strings.Contains(got, "customers find you") {
		t.Errorf("second question block survived: %q", got)
	}
	if !strings.Contains(got, "daily frustration") {
		t.Errorf("first question body lost: %q", got)
	}
}

func TestCleanQuestionDropsLeakageAndAsides(t *testing.T) {
	raw := strings.Join([]string{
		"**Question 3: Customers & Reach**",
		"How do new customers usually hear about your business these days?",
		"(This probes the marketing channel mix)",
		"Note for Assistant: do not mention the summary yet.",
	}, "\n")
	got := CleanQuestion(raw, 3)
	if strings.Contains(got, "Note for Assistant") || strings.Contains(got, "marketing channel mix") {
		t.Errorf("internal note leaked: %q", got)
	}
	if !strings.Contains(got, "hear about your business") {
		t.Errorf("question body lost: %q", got)
	}
}

func TestCleanQuestionRejectsTooShortOutput(t *testing.T) {
	raw := "**Question 1: Hi**\nShort?"
	if got := CleanQuestion(raw, 1); got != "" {
		t.Errorf("expected rejection of output below minimum length, got %q", got)
	}
}

func TestCleanQuestionNoHeaderAnywhere(t *testing.T) {
	raw := "Thanks for sharing all of that, it sounds like a wonderful business with a lot of potential."
	if got := CleanQuestion(raw, 2); got != "" {
		t.Errorf("expected rejection when no header present, got %q", got)
	}
}

func TestCleanQuestionTruncatesAtHorizontalRule(t *testing.T) {
	raw := "**Question 4: Operations & Data**\nWhat records do you keep about sales, bookings, or inventory?\n---\nDraft two: what systems do you use?"
	got := CleanQuestion(raw, 4)
	if strings.Contains(got, "Draft two") || strings.Contains(got, "---") {
		t.Errorf("content after horizontal rule survived: %q", got)
	}
}

func TestCleanSummaryStripsReasoningOnly(t *testing.T) {
	raw := "<think>Time to summarize what the owner said about the bakery.</think>\nThanks for walking me through your bakery. You bake custom cakes, struggle with order tracking, and want to grow wholesale."
	got := CleanSummary(raw)
	if strings.Contains(got, "<think>") || strings.Contains(got, "Time to summarize") {
		t.Errorf("reasoning leaked into summary: %q", got)
	}
	if !strings.Contains(got, "custom cakes") {
		t.Errorf("summary body lost: %q", got)
	}
}

func TestCleanSummaryRejectsEmptyAfterStripping(t *testing.T) {
	if got := CleanSummary("<think>only thoughts, never closed"); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}

func TestPipelineStepsArePure(t *testing.T) {
	raw := "<think>x</think>**Question 2: Pain Points**\nWhat slows you down the most in a normal week of running things?"
	first := CleanQuestion(raw, 2)
	second := CleanQuestion(raw, 2)
	if first != second {
		t.Errorf("pipeline not deterministic: %q vs %q", first, second)
	}
}

func TestStripNotesKeepsNormalParentheses(t *testing.T) {
	in := "What tools (if any) do you use to track inventory today?"
	if got := StripNotes(in); got != in {
		t.Errorf("inline parenthetical wrongly removed: %q", got)
	}
}

func TestIsReasoningOnly(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"think without header", "<think>hmm</think> nothing else", true},
		{"think with header", "<think>hmm</think>**Question 1: Overview**", false},
		{"no think", "plain text", false},
	}
	for _, tc := range cases {
		if got := IsReasoningOnly(tc.in); got != tc.want {
			t.Errorf("%s: IsReasoningOnly = %v, want %v", tc.name, got, tc.want)
		}
	}
}
