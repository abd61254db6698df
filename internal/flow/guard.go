// Package flow provides the step discipline guard.
package flow

import (
	"fmt"
	"strings"

	"github.com/planforge/planforge/internal/models"
)

// finalQuestionPhrases mark output that frames a question as the final one.
// Checked only while step <= 4; at step 5 the framing is legitimate.
var finalQuestionPhrases = []string{
	"final question",
	"last question",
	"one last question",
	"one final question",
	"this is the final",
	"for our final",
	"wrapping up with",
}

// summaryPhrases mark output that summarizes the conversation. Checked only
// while step <= 5; at step 6 the summary is the expected turn.
var summaryPhrases = []string{
	"here's a summary",
	"here is a summary",
	"to summarize",
	"summary of what you've shared",
	"summary of what you have shared",
	"let me recap",
	"let's recap",
	"quick recap of",
	"based on everything you've told me",
	"based on everything you've shared",
}

// DetectViolation scans assistant text for step-violating content. At most
// one violation is returned per call; the final-question check takes
// precedence over the summary check.
func DetectViolation(text string, step models.Step) (models.StepViolation, bool) {
	lower := strings.ToLower(text)

	if step <= models.StepFinalQuestion-1 {
		for _, phrase := range finalQuestionPhrases {
			if strings.Contains(lower, phrase) {
				return models.ViolationFinalQuestionEarly, true
			}
		}
	}
	if step <= models.StepFinalQuestion {
		for _, phrase := range summaryPhrases {
			if strings.Contains(lower, phrase) {
				return models.ViolationSummaryTooEarly, true
			}
		}
	}
	return "", false
}

// CorrectiveNote builds the deterministic system-prompt addendum appended
// before a guardrail retry. It names the violation, restates the current
// step's required topic, and forbids the offending phrasing.
func CorrectiveNote(v models.StepViolation, step models.Step) string {
	topic := StepTopic(step)
	switch v {
	case models.ViolationFinalQuestionEarly:
		return fmt.Sprintf(
			"CORRECTION REQUIRED: your previous draft called Question %d the final question, but there are five questions in total and we are only on question %d. "+
				"Ask about %s. Do not use the words \"final question\" or \"last question\".",
			step, step, topic)
	case models.ViolationSummaryTooEarly:
		return fmt.Sprintf(
			"CORRECTION REQUIRED: your previous draft summarized the conversation, but the summary happens only after all five questions. "+
				"We are on question %d; ask about %s. Do not recap or summarize anything the owner has said.",
			step, topic)
	default:
		return fmt.Sprintf("CORRECTION REQUIRED: stay on question %d about %s.", step, topic)
	}
}
