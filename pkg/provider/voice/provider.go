// Package voice defines the Provider interface for realtime voice backends.
//
// A voice provider wraps a speech-to-speech service that carries a live
// conversation with the practicing user: the browser's audio goes in, the
// agent's synthesised speech comes out, and every completed utterance on
// either side is surfaced as a conversation turn. The turn log is what the
// analysis step later grades, so turns carry offsets from session start
// rather than wall-clock times.
//
// The central abstraction is SessionHandle: a bidirectional, multiplexed
// channel carrying audio and turns concurrently. Sessions are long-lived
// (seconds to minutes).
//
// All implementations must be safe for concurrent use.
package voice

import (
	"context"
	"time"

	"github.com/Metzpapa/bleai/pkg/types"
)

// SessionConfig is the initial configuration for a new voice session.
type SessionConfig struct {
	// Instructions is the system-level prompt that defines the
	// conversation partner's persona and behaviour, built from the task
	// scenario (e.g. "You are a sceptical procurement manager...").
	Instructions string

	// Voice selects the synthesised voice. Provider-specific identifier;
	// empty uses the provider default.
	Voice string
}

// Capabilities describes static properties of the voice provider.
// The values are assumed constant for the lifetime of the Provider instance.
type Capabilities struct {
	// ContextWindow is the maximum token count (or provider-equivalent
	// unit) the model can maintain across the session.
	ContextWindow int

	// MaxSessionDuration is the hard upper bound on session lifetime, as
	// imposed by the provider. Zero means no documented limit.
	MaxSessionDuration time.Duration

	// Voices lists the voice identifiers available for this provider.
	Voices []string
}

// SessionHandle represents an open voice session. It is an interface so
// that test code can supply mock implementations without a live provider
// connection.
//
// The session is a hot path — every method must return quickly. Audio I/O
// is channel-based to avoid blocking the caller's relay loop. All methods
// must be safe for concurrent use.
//
// Callers must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendAudio delivers a raw PCM16 audio chunk to the provider for
	// processing. Returns an error if the session is closed or the
	// provider cannot accept the chunk.
	SendAudio(chunk []byte) error

	// Audio returns a read-only channel that emits raw PCM16 audio byte
	// slices as the agent synthesises its spoken response. The channel is
	// closed when the session ends or when a mid-stream error occurs.
	// After the channel closes, call Err to check whether the session
	// ended cleanly. Consumers must drain this channel promptly.
	Audio() <-chan []byte

	// Turns returns a read-only channel that emits a ConversationTurn per
	// completed utterance, for both the user (as recognised by the model)
	// and the agent (as generated text). Closed when the session ends.
	Turns() <-chan types.ConversationTurn

	// Err returns the error that caused the Audio and Turns channels to
	// close prematurely, or nil if the session ended cleanly.
	Err() error

	// Interrupt signals the provider to stop generating the current
	// response and discard any buffered audio. Use this when the user
	// begins speaking mid-response (barge-in).
	Interrupt() error

	// Close terminates the session, releases all resources, and closes
	// the Audio and Turns channels. Calling Close more than once is safe
	// and returns nil.
	Close() error
}

// Provider is the abstraction over any realtime voice backend.
type Provider interface {
	// Connect establishes a new voice session with the given
	// configuration. The returned SessionHandle is ready to accept audio
	// immediately. The caller owns the handle and is responsible for
	// calling Close.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)

	// Capabilities returns static metadata about this provider's
	// underlying model.
	Capabilities() Capabilities

	// Name returns the provider's stable identifier for logs and metrics.
	Name() string
}
