// Package flow implements the discovery conversation step engine: step
// derivation, step-discipline guarding, prompt assembly, and the plan
// generation trigger.
package flow

import (
	"github.com/planforge/planforge/internal/models"
)

// PlanTriggerTurns is the per-role turn-count threshold for plan generation:
// five Q&A exchanges plus one summary-confirmation exchange.
const PlanTriggerTurns = 6

// TurnCounts holds per-role turn tallies for one conversation history.
type TurnCounts struct {
	User      int
	Assistant int
}

// CountTurns tallies turns by role. Unknown roles are ignored.
func CountTurns(turns []models.ConversationTurn) TurnCounts {
	var c TurnCounts
	for _, t := range turns {
		switch t.Role {
		case models.RoleUser:
			c.User++
		case models.RoleAssistant:
			c.Assistant++
		}
	}
	return c
}

// DeriveStep computes the authoritative step from the turn history. The
// result is min(6, assistantTurns+1), clamped up by a larger client-declared
// step but never down: the server never regresses progress based on stale
// client state. The function is pure and idempotent, so replayed or
// duplicated requests derive the same step.
func DeriveStep(turns []models.ConversationTurn, clientStep int) models.Step {
	counts := CountTurns(turns)
	derived := counts.Assistant + 1
	if clientStep > derived {
		derived = clientStep
	}
	if derived > int(models.StepSummary) {
		derived = int(models.StepSummary)
	}
	if derived < int(models.StepMin) {
		derived = int(models.StepMin)
	}
	return models.Step(derived)
}

// ShouldGeneratePlan reports whether the conversation has completed all five
// Q&A exchanges plus the summary-confirmation exchange. Both thresholds must
// hold simultaneously; reaching step 6 alone is necessary but not
// sufficient. Checked independently of the step counter to avoid premature
// firing from step-counter drift.
func ShouldGeneratePlan(turns []models.ConversationTurn) bool {
	counts := CountTurns(turns)
	return counts.User >= PlanTriggerTurns && counts.Assistant >= PlanTriggerTurns
}
