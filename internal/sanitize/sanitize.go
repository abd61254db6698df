// Package sanitize transforms raw model output into exactly one well-formed
// question block (or a summary block at step 6), stripping any visible
// reasoning trace.
//
// The pipeline is a fixed composition of named, independently testable steps:
// StripReasoning, StripNotes, ExtractQuestionBlock, NormalizeHeader,
// DedupeHeaders. Every step is a pure function; same input and step always
// yield the same output.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/planforge/planforge/internal/models"
)

// MinAcceptedLength is the minimum cleaned-output length. Anything shorter
// after filtering is treated as sanitizer failure and the caller falls back.
const MinAcceptedLength = 50

var (
	// Chain-of-thought delimiter blocks, both well-formed and truncated.
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	thinkOpenRe  = regexp.MustCompile(`(?s)<think>.*$`)

	// A question header in either bold or plain form.
	headerRe     = regexp.MustCompile(`(?i)\*{0,2}Question\s+(\d+)\s*:`)
	boldHeaderRe = regexp.MustCompile(`(?i)\*\*Question\s+(\d+)\s*:`)

	// Lines that are parenthetical asides or internal notes.
	asideLineRe = regexp.MustCompile(`^\s*\(.*\)\s*$`)

	// Horizontal-rule lines act as stop markers for block extraction.
	hrLineRe = regexp.MustCompile(`(?m)^\s*(-{3,}|\*{3,}|_{3,})\s*$`)
)

// leakagePhrases are fixed markers of internal notes that must never reach
// the user. Any line containing one is dropped.
var leakagePhrases = []string{
	"Note for Assistant",
	"NOTE TO ASSISTANT",
	"END OF RESPONSE",
	"[SYSTEM MESSAGE]",
	"[SYSTEM]",
	"[INTERNAL]",
	"Internal note",
	"As an AI language model",
}

// stopMarkers bound a question block: alternate reasoning continuations,
// revised-question restarts, or a new header. Scanned after the header line.
var stopMarkers = []string{
	"\nHowever,",
	"\nWait,",
	"\nActually,",
	"\nHmm,",
	"\nRevised Question",
	"\nLet me reconsider",
}

// StripReasoning removes chain-of-thought delimiter blocks entirely,
// including truncated blocks that were never closed.
func StripReasoning(s string) string {
	s = thinkBlockRe.ReplaceAllString(s, "")
	s = thinkOpenRe.ReplaceAllString(s, "")
	return s
}

// IsReasoningOnly detects responses that contain a chain-of-thought delimiter
// with no question-header marker anywhere. Such responses carry no usable
// content and are treated as empty.
func IsReasoningOnly(s string) bool {
	if !strings.Contains(s, "<think>") {
		return false
	}
	return !headerRe.MatchString(s)
}

// StripNotes removes lines that are parenthetical asides or contain known
// leakage phrases.
func StripNotes(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if asideLineRe.MatchString(line) {
			continue
		}
		if containsLeakage(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func containsLeakage(line string) bool {
	for _, phrase := range leakagePhrases {
		if strings.Contains(line, phrase) {
			return true
		}
	}
	return false
}

// ExtractQuestionBlock isolates the first question block, anchored on a
// "Question <n>" header and bounded by the nearest stop marker. It tries the
// bold-header pattern first, then the plain-header pattern, then a manual
// substring scan. Returns "" when no header is present.
func ExtractQuestionBlock(s string) string {
	if loc := boldHeaderRe.FindStringIndex(s); loc != nil {
		return truncateAtStopMarker(s[loc[0]:])
	}
	if loc := headerRe.FindStringIndex(s); loc != nil {
		return truncateAtStopMarker(s[loc[0]:])
	}
	// Manual scan: locate a lowercase "question n:" occurrence the regexes
	// may have missed due to unusual spacing.
	lower := strings.ToLower(s)
	idx := strings.Index(lower, "question")
	if idx == -1 {
		return ""
	}
	return truncateAtStopMarker(s[idx:])
}

// truncateAtStopMarker cuts the block at the earliest stop marker, a second
// question header, or a horizontal-rule line following the header line.
func truncateAtStopMarker(block string) string {
	end := len(block)

	for _, marker := range stopMarkers {
		if i := strings.Index(block, marker); i != -1 && i < end {
			end = i
		}
	}

	// A second header terminates the block. Skip the first match.
	if locs := headerRe.FindAllStringIndex(block, 2); len(locs) == 2 {
		if locs[1][0] < end {
			end = locs[1][0]
		}
	}

	// Horizontal rules after the first line terminate the block.
	firstLineEnd := strings.Index(block, "\n")
	if firstLineEnd != -1 {
		if loc := hrLineRe.FindStringIndex(block[firstLineEnd:]); loc != nil {
			if firstLineEnd+loc[0] < end {
				end = firstLineEnd + loc[0]
			}
		}
	}

	return strings.TrimSpace(block[:end])
}

// NormalizeHeader rewrites whatever step number the model produced to the
// current step, preserving the bold or plain form of the header.
func NormalizeHeader(s string, step models.Step) string {
	s = boldHeaderRe.ReplaceAllString(s, fmt.Sprintf("**Question %d:", step))
	// Plain headers only; bold ones were already rewritten above.
	return replacePlainHeaders(s, step)
}

func replacePlainHeaders(s string, step models.Step) string {
	return headerRe.ReplaceAllStringFunc(s, func(m string) string {
		if strings.HasPrefix(m, "**") {
			return m
		}
		return fmt.Sprintf("Question %d:", step)
	})
}

// DedupeHeaders collapses duplicate question headers, keeping only the first
// occurrence and the content that follows it.
func DedupeHeaders(s string) string {
	locs := headerRe.FindAllStringIndex(s, -1)
	if len(locs) < 2 {
		return s
	}
	return strings.TrimSpace(s[:locs[1][0]])
}

// CleanQuestion runs the full pipeline for a question turn at the given step.
// Returns "" when the response is reasoning-only or the cleaned output is too
// short to accept; the caller falls back to the deterministic template.
func CleanQuestion(raw string, step models.Step) string {
	if IsReasoningOnly(raw) {
		return ""
	}
	s := StripReasoning(raw)
	s = StripNotes(s)
	s = ExtractQuestionBlock(s)
	if s == "" {
		return ""
	}
	s = NormalizeHeader(s, step)
	s = DedupeHeaders(s)
	s = strings.TrimSpace(s)
	if len(s) < MinAcceptedLength {
		return ""
	}
	return s
}

// CleanSummary runs the reduced pipeline for the summary turn: reasoning and
// note stripping only, no question-block extraction.
func CleanSummary(raw string) string {
	if strings.Contains(raw, "<think>") && !strings.Contains(raw, "</think>") &&
		strings.TrimSpace(StripReasoning(raw)) == "" {
		return ""
	}
	s := StripReasoning(raw)
	s = StripNotes(s)
	s = strings.TrimSpace(s)
	if len(s) < MinAcceptedLength {
		return ""
	}
	return s
}
