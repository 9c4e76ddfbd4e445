package resilience

import (
	"context"
	"fmt"
	"strings"

	"github.com/Metzpapa/bleai/pkg/provider/llm"
	"github.com/Metzpapa/bleai/pkg/types"
)

// LLMFallback implements [llm.Provider] with automatic failover across
// completion backends. The transcript corrector is the main consumer: a
// vocabulary fix-up should degrade to a slower backend rather than lose the
// whole refinement pass.
type LLMFallback struct {
	chain *Chain[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred
// backend.
func NewLLMFallback(primary llm.Provider, name string, cfg ChainConfig) *LLMFallback {
	return &LLMFallback{
		chain: NewChain(primary, name, cfg),
	}
}

// AddFallback registers an additional completion backend.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.chain.Add(name, provider)
}

// Complete sends the request to the first healthy backend and returns its
// response.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.chain, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// CountTokens delegates to the first healthy backend's token counter.
func (f *LLMFallback) CountTokens(messages []types.Message) (int, error) {
	return ExecuteWithResult(f.chain, func(p llm.Provider) (int, error) {
		return p.CountTokens(messages)
	})
}

// Capabilities returns the primary backend's capabilities. Static metadata
// does not participate in failover.
func (f *LLMFallback) Capabilities() types.ModelCapabilities {
	return f.chain.Primary().Capabilities()
}

// Name identifies the whole chain in logs and metrics.
func (f *LLMFallback) Name() string {
	return fmt.Sprintf("chain(%s)", strings.Join(f.chain.Names(), ","))
}
