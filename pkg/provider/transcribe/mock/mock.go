// Package mock provides a mock transcription provider for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/Metzpapa/bleai/pkg/provider/transcribe"
	"github.com/Metzpapa/bleai/pkg/types"
)

// TranscribeCall records the arguments of a Transcribe invocation.
type TranscribeCall struct {
	AudioLen int
	Opts     transcribe.Options
}

// Provider is a mock implementation of transcribe.Provider.
//
// Configure the exported fields before use, then inspect the recorded
// calls. All methods are safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// Transcript is returned by Transcribe when TranscribeErr is nil.
	Transcript *types.Transcript

	// TranscribeErr, when set, is returned by every Transcribe call.
	TranscribeErr error

	// Delay, when set, makes Transcribe wait before returning. The call
	// still honors context cancellation during the wait.
	Delay time.Duration

	// NameValue overrides the provider name. Defaults to "mock".
	NameValue string

	// TranscribeCalls records every Transcribe invocation in order.
	TranscribeCalls []TranscribeCall
}

var _ transcribe.Provider = (*Provider)(nil)

// Transcribe records the call and returns the configured transcript or
// error.
func (p *Provider) Transcribe(ctx context.Context, wav []byte, opts transcribe.Options) (*types.Transcript, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{
		AudioLen: len(wav),
		Opts:     opts,
	})
	delay := p.Delay
	transcript := p.Transcript
	err := p.TranscribeErr
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if transcript == nil {
		transcript = &types.Transcript{Text: "mock transcript"}
	}
	return transcript, nil
}

// Name returns the configured provider name.
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

// CallCount returns the number of recorded Transcribe calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}
