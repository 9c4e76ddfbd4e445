// Package mock provides a test double for the analysis.Provider interface.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/Metzpapa/bleai/pkg/provider/analysis"
	"github.com/Metzpapa/bleai/pkg/types"
)

// AnalyzeCall records a single invocation of Analyze.
type AnalyzeCall struct {
	// Ctx is the context passed to Analyze.
	Ctx context.Context
	// Req is the Request passed to Analyze.
	Req analysis.Request
}

// Provider is a mock implementation of analysis.Provider.
//
// Configure the exported fields before use, then inspect the recorded
// calls. All methods are safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// Report is returned by Analyze when AnalyzeErr is nil. When nil, a
	// minimal placeholder report is returned instead.
	Report *types.FeedbackReport

	// AnalyzeErr, if non-nil, is returned by every Analyze call.
	AnalyzeErr error

	// Delay, when set, makes Analyze wait before returning. The call still
	// honors context cancellation during the wait.
	Delay time.Duration

	// NameValue overrides the provider name. Defaults to "mock".
	NameValue string

	// AnalyzeCalls records every Analyze invocation in order.
	AnalyzeCalls []AnalyzeCall
}

var _ analysis.Provider = (*Provider)(nil)

// Analyze records the call and returns the configured report or error.
func (p *Provider) Analyze(ctx context.Context, req analysis.Request) (*types.FeedbackReport, error) {
	p.mu.Lock()
	p.AnalyzeCalls = append(p.AnalyzeCalls, AnalyzeCall{Ctx: ctx, Req: req})
	delay := p.Delay
	report := p.Report
	err := p.AnalyzeErr
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
	if report == nil {
		report = &types.FeedbackReport{
			OverallScore: 50,
			Summary:      "mock analysis",
		}
	}
	return report, nil
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

// CallCount returns the number of recorded Analyze calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.AnalyzeCalls)
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AnalyzeCalls = nil
}
