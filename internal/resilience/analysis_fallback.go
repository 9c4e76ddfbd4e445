package resilience

import (
	"context"
	"fmt"
	"strings"

	"github.com/Metzpapa/bleai/pkg/provider/analysis"
	"github.com/Metzpapa/bleai/pkg/types"
)

// AnalysisFallback implements [analysis.Provider] with automatic failover
// across multiple evaluation backends. Each backend has its own circuit
// breaker; when the primary fails or its breaker is open, the next healthy
// backend grades the attempt instead.
type AnalysisFallback struct {
	chain *Chain[analysis.Provider]
}

// Compile-time interface assertion.
var _ analysis.Provider = (*AnalysisFallback)(nil)

// NewAnalysisFallback creates an [AnalysisFallback] with primary as the
// preferred backend.
func NewAnalysisFallback(primary analysis.Provider, name string, cfg ChainConfig) *AnalysisFallback {
	return &AnalysisFallback{
		chain: NewChain(primary, name, cfg),
	}
}

// AddFallback registers an additional evaluation backend.
func (f *AnalysisFallback) AddFallback(name string, provider analysis.Provider) {
	f.chain.Add(name, provider)
}

// Analyze grades the attempt with the first healthy backend.
func (f *AnalysisFallback) Analyze(ctx context.Context, req analysis.Request) (*types.FeedbackReport, error) {
	return ExecuteWithResult(f.chain, func(p analysis.Provider) (*types.FeedbackReport, error) {
		return p.Analyze(ctx, req)
	})
}

// Name identifies the whole chain in logs and metrics.
func (f *AnalysisFallback) Name() string {
	return fmt.Sprintf("chain(%s)", strings.Join(f.chain.Names(), ","))
}
