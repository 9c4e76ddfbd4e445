// Package analysis defines the Provider interface for evaluation backends.
//
// An analysis provider receives the full evidence bundle for one practice
// attempt: the contact sheets sampled from the recording, the transcript
// (or, for live sessions, the conversation log), and the rubric the
// attempt should be graded against. It returns a structured feedback
// report with an overall score and timestamped feedback items.
//
// The package also carries the prompt construction and report parsing
// shared by backends, so that adding a new vision-capable backend means
// implementing only the transport.
//
// Implementations must be safe for concurrent use.
package analysis

import (
	"context"
	"fmt"

	"github.com/Metzpapa/bleai/pkg/sheet"
	"github.com/Metzpapa/bleai/pkg/types"
)

// Request carries the evidence bundle for one evaluation.
type Request struct {
	// Sheets is the ordered contact sheet sequence sampled from the
	// recording. Must not be empty.
	Sheets []sheet.ContactSheet

	// Transcript is the speech transcript of the recording. Nil when the
	// recording has no audio track or the session was interactive.
	Transcript *types.Transcript

	// Conversation is the turn log of an interactive session. Nil for
	// recorded (non-interactive) attempts.
	Conversation []types.ConversationTurn

	// Interactive indicates the attempt was a live conversation with the
	// voice agent rather than a solo recording.
	Interactive bool

	// TaskTitle names the practice task, e.g. "Cold call opening".
	TaskTitle string

	// Rubric is the grading rubric text the report must be based on.
	Rubric string
}

// Validate checks that the request carries enough evidence to evaluate.
func (r *Request) Validate() error {
	if len(r.Sheets) == 0 {
		return fmt.Errorf("analysis: request must carry at least one contact sheet")
	}
	if r.Rubric == "" {
		return fmt.Errorf("analysis: rubric must not be empty")
	}
	return nil
}

// Provider is the abstraction over any evaluation backend.
type Provider interface {
	// Analyze evaluates the evidence bundle and returns the feedback
	// report. Blocks until the backend responds or ctx is done.
	Analyze(ctx context.Context, req Request) (*types.FeedbackReport, error)

	// Name returns the provider's stable identifier for logs, metrics,
	// and fallback-chain reporting.
	Name() string
}
