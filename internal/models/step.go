// Package models defines step and guardrail structures for the discovery flow.
package models

// Step is the discovery-phase counter. Steps 1-5 are question turns, step 6
// is the summary turn. The step is always derived from turn counts, never
// stored; plan generation is a distinct action triggered by turn-count
// thresholds, not a step value.
type Step int

const (
	// StepMin is the first question step.
	StepMin Step = 1
	// StepFinalQuestion is the last question step.
	StepFinalQuestion Step = 5
	// StepSummary is the summary turn.
	StepSummary Step = 6
)

// IsQuestion reports whether the step expects a "Question N" turn.
func (s Step) IsQuestion() bool {
	return s >= StepMin && s <= StepFinalQuestion
}

// IsSummary reports whether the step expects the summary turn.
func (s Step) IsSummary() bool {
	return s == StepSummary
}

// StepViolation tags model output that broke the step-ordering contract.
type StepViolation string

const (
	// ViolationFinalQuestionEarly means the model framed a question as final
	// before step 5.
	ViolationFinalQuestionEarly StepViolation = "final_question_early"
	// ViolationSummaryTooEarly means the model summarized before step 6.
	ViolationSummaryTooEarly StepViolation = "summary_too_early"
)

// MaxGuardrailRetries bounds corrective re-prompts after a violation. After
// this many corrective attempts the orchestrator abandons the model for the
// turn and substitutes the deterministic templated message.
const MaxGuardrailRetries = 2

// GuardrailAttempt is the ephemeral retry state carried through one request's
// corrective loop. It is an immutable value; each retry derives a new one.
type GuardrailAttempt struct {
	AttemptNumber  int
	Violation      StepViolation
	CorrectiveNote string
}

// Next returns the attempt state for the following retry.
func (a GuardrailAttempt) Next(v StepViolation, note string) GuardrailAttempt {
	return GuardrailAttempt{
		AttemptNumber:  a.AttemptNumber + 1,
		Violation:      v,
		CorrectiveNote: note,
	}
}

// Exhausted reports whether the bounded retry budget is spent.
func (a GuardrailAttempt) Exhausted() bool {
	return a.AttemptNumber > MaxGuardrailRetries
}
