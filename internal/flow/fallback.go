// Package flow provides deterministic fallback messages used when the model
// cannot produce a policy-conforming turn.
package flow

import (
	"fmt"
	"strings"

	"github.com/planforge/planforge/internal/models"
)

// FallbackQuestion builds the deterministic templated question for a step
// from whatever structured context fields are already known. It is never
// passed through the guard, guaranteeing the retry loop terminates.
func FallbackQuestion(step models.Step, summary *models.ContextSummary) string {
	business := "your business"
	if summary != nil && !models.IsPlaceholder(summary.BusinessType) {
		business = "your " + strings.ToLower(summary.BusinessType) + " business"
	}

	switch step {
	case 1:
		return "**Question 1: Business Overview**\nTell me about your business. What do you do, who do you serve, and how long have you been running it?"
	case 2:
		return fmt.Sprintf("**Question 2: Pain Points**\nWhat parts of running %s take up the most time or cause the most frustration day to day?", business)
	case 3:
		return fmt.Sprintf("**Question 3: Customers & Reach**\nHow do customers typically find %s today, and how do you stay in touch with them?", business)
	case 4:
		return fmt.Sprintf("**Question 4: Operations & Data**\nWhat tools or systems do you use to run %s, and what records do you keep (sales, bookings, inventory, anything else)?", business)
	case 5:
		return fmt.Sprintf("**Question 5: Goals & Vision**\nLooking ahead a year or two, what would you most like to change or achieve with %s?", business)
	default:
		return FallbackSummary(summary)
	}
}

// FallbackSummary builds the deterministic templated summary from known
// context fields when the model cannot produce an acceptable one.
func FallbackSummary(summary *models.ContextSummary) string {
	if summary == nil {
		summary = models.NewContextSummary()
	}
	var b strings.Builder
	b.WriteString("Thanks for walking me through your business. Here's what I've gathered so far:\n\n")
	writeBullet(&b, "Business", summary.BusinessType)
	writeBullet(&b, "Biggest pain points", summary.PainPoints)
	writeBullet(&b, "Goals", summary.Goals)
	writeBullet(&b, "Data on hand", summary.DataAvailable)
	writeBullet(&b, "Current tools", summary.PriorTechUse)
	writeBullet(&b, "Growth plans", summary.GrowthIntent)
	b.WriteString("\nDoes this look right? Once you confirm, I'll put together your personalized AI implementation plan.")
	return b.String()
}

func writeBullet(b *strings.Builder, label, value string) {
	if models.IsPlaceholder(value) {
		value = "we didn't get into this yet"
	}
	fmt.Fprintf(b, "- %s: %s\n", label, value)
}

// FallbackPlan is the static templated plan returned when plan generation
// fails entirely.
func FallbackPlan(summary *models.ContextSummary) string {
	business := "your business"
	if summary != nil && !models.IsPlaceholder(summary.BusinessType) {
		business = "your " + strings.ToLower(summary.BusinessType) + " business"
	}
	return fmt.Sprintf(`# Your AI Implementation Plan

We hit a temporary problem generating a fully personalized plan, so here is a solid starting roadmap for %s. Please restart the conversation for a personalized plan.

## 1. Quick Wins (first 30 days)
- Set up an AI assistant to draft replies to routine customer emails and messages.
- Use an AI note-taker for meetings and phone calls so nothing gets lost.

## 2. Customer Experience (30-90 days)
- Add an AI chat widget to your website to answer common questions around the clock.
- Draft marketing copy and social posts with an AI writing tool, reviewed by you.

## 3. Operations & Data (90-180 days)
- Centralize your sales and customer records in one system so AI tools can use them.
- Automate repetitive admin tasks such as invoicing reminders and appointment follow-ups.

## Next Steps
Restart the discovery chat whenever you're ready and we'll tailor every step above to %s.`, business, business)
}
