// Package types defines the shared types used across all bleai packages.
//
// These types form the lingua franca between the media pipeline, providers,
// stores, and the coordinator. They are intentionally minimal — each package
// defines its own domain types, but cross-cutting data structures live here
// to avoid circular imports.
package types

import "time"

// Transcript represents a speech-to-text result for one recording.
type Transcript struct {
	// Text is the full transcribed speech content.
	Text string

	// Words contains per-word timing detail when available.
	// May be nil for providers that don't support word-level output.
	Words []Word

	// Language is the detected or requested language code (e.g., "en").
	// Empty if the provider does not report it.
	Language string

	// Duration is the length of the transcribed audio.
	Duration time.Duration
}

// Word holds per-word timing metadata from transcription providers
// that support it. Offsets are relative to the start of the recording.
type Word struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Turn roles used in live practice conversations.
const (
	// RoleUser marks a turn spoken by the person practicing.
	RoleUser = "user"

	// RoleAgent marks a turn spoken by the voice agent.
	RoleAgent = "agent"
)

// ConversationTurn is one exchange in a live practice conversation.
// For interactive scenarios the ordered turn log substitutes for
// word-level transcript timing in the analysis request.
type ConversationTurn struct {
	// Role is RoleUser for the person practicing or RoleAgent for the
	// voice agent.
	Role string

	// Content is the spoken text of the turn.
	Content string

	// Timestamp is the turn's start offset relative to session start.
	Timestamp time.Duration
}

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool
}

// FeedbackCategory classifies a single feedback item on the review timeline.
type FeedbackCategory string

const (
	// CategoryPositive marks a moment worth keeping as-is.
	CategoryPositive FeedbackCategory = "positive"

	// CategoryImprovement marks a moment with a concrete suggestion attached.
	CategoryImprovement FeedbackCategory = "improvement"

	// CategoryCritical marks a moment that materially hurt the attempt.
	CategoryCritical FeedbackCategory = "critical"
)

// IsValid reports whether the category is one of the known values.
func (c FeedbackCategory) IsValid() bool {
	switch c {
	case CategoryPositive, CategoryImprovement, CategoryCritical:
		return true
	}
	return false
}

// String returns the wire value of the category.
func (c FeedbackCategory) String() string { return string(c) }

// FeedbackItem is one timestamped observation in a feedback report.
// StartTime and EndTime bound the video span the observation refers to,
// so the review UI can seek straight to the evidence.
type FeedbackItem struct {
	// StartTime is the start of the referenced span.
	StartTime time.Duration

	// EndTime is the end of the referenced span. Always ≥ StartTime.
	EndTime time.Duration

	// Category classifies the observation.
	Category FeedbackCategory

	// Title is a short headline for the observation.
	Title string

	// Feedback is the full explanation of what was observed.
	Feedback string

	// Suggestion is an optional concrete change to try. Empty when the
	// category is positive.
	Suggestion string
}

// FeedbackReport is the structured result of analyzing one practice attempt.
type FeedbackReport struct {
	// OverallScore rates the attempt from 0 to 100.
	OverallScore int

	// Summary is a short overall assessment.
	Summary string

	// Strengths lists what went well, in no particular order.
	Strengths []string

	// AreasForImprovement lists what to work on next.
	AreasForImprovement []string

	// Feedback holds the timestamped observations, ordered by StartTime.
	Feedback []FeedbackItem
}
