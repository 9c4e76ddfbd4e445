package resilience

import (
	"context"
	"fmt"
	"strings"

	"github.com/Metzpapa/bleai/pkg/provider/transcribe"
	"github.com/Metzpapa/bleai/pkg/types"
)

// TranscribeFallback implements [transcribe.Provider] with automatic
// failover across multiple transcription backends. Each backend has its own
// circuit breaker; when the primary fails or its breaker is open, the next
// healthy backend transcribes the recording instead.
type TranscribeFallback struct {
	chain *Chain[transcribe.Provider]
}

// Compile-time interface assertion.
var _ transcribe.Provider = (*TranscribeFallback)(nil)

// NewTranscribeFallback creates a [TranscribeFallback] with primary as the
// preferred backend.
func NewTranscribeFallback(primary transcribe.Provider, name string, cfg ChainConfig) *TranscribeFallback {
	return &TranscribeFallback{
		chain: NewChain(primary, name, cfg),
	}
}

// AddFallback registers an additional transcription backend.
func (f *TranscribeFallback) AddFallback(name string, provider transcribe.Provider) {
	f.chain.Add(name, provider)
}

// Transcribe runs the recording against the first healthy backend.
func (f *TranscribeFallback) Transcribe(ctx context.Context, audio []byte, opts transcribe.Options) (*types.Transcript, error) {
	return ExecuteWithResult(f.chain, func(p transcribe.Provider) (*types.Transcript, error) {
		return p.Transcribe(ctx, audio, opts)
	})
}

// Name identifies the whole chain in logs and metrics.
func (f *TranscribeFallback) Name() string {
	return fmt.Sprintf("chain(%s)", strings.Join(f.chain.Names(), ","))
}
