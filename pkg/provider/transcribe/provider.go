// Package transcribe defines the Provider interface for batch
// speech-to-text backends.
//
// A transcription provider accepts the complete audio track of one
// recorded practice attempt (16 kHz mono PCM16 WAV, as produced by the
// media layer) and returns the full transcript in a single call.
// Word-level timing is what makes transcripts useful downstream — the
// analysis step aligns feedback to playback positions through it — so
// providers report per-word offsets whenever the backend supports them
// and leave Words nil when it doesn't.
//
// Implementations must be safe for concurrent use; one provider instance
// serves transcription requests for many sessions.
package transcribe

import (
	"context"

	"github.com/Metzpapa/bleai/pkg/types"
)

// Options carries per-request recognition hints.
type Options struct {
	// Language is the BCP-47 language tag for recognition (e.g., "en").
	// An empty string lets the provider auto-detect, if supported.
	Language string

	// Vocabulary lists uncommon terms expected in the recording — task
	// jargon, product names — that the provider should bias towards.
	// Providers without a vocabulary mechanism ignore it.
	Vocabulary []string
}

// Provider is the abstraction over any batch transcription backend.
type Provider interface {
	// Transcribe submits one complete WAV recording and returns the
	// transcript. Blocks until the backend responds or ctx is done.
	Transcribe(ctx context.Context, wav []byte, opts Options) (*types.Transcript, error)

	// Name returns the provider's stable identifier for logs, metrics,
	// and fallback-chain reporting.
	Name() string
}
