package resilience

import (
	"context"
	"fmt"
	"strings"

	"github.com/Metzpapa/bleai/pkg/provider/voice"
)

// VoiceFallback implements [voice.Provider] with automatic failover for the
// initial session connect. Only Connect is covered: once a live session is
// established, mid-session errors belong to the relay loop, which cannot
// splice a replacement backend into a half-finished conversation.
type VoiceFallback struct {
	chain *Chain[voice.Provider]
}

// Compile-time interface assertion.
var _ voice.Provider = (*VoiceFallback)(nil)

// NewVoiceFallback creates a [VoiceFallback] with primary as the preferred
// backend.
func NewVoiceFallback(primary voice.Provider, name string, cfg ChainConfig) *VoiceFallback {
	return &VoiceFallback{
		chain: NewChain(primary, name, cfg),
	}
}

// AddFallback registers an additional realtime voice backend.
func (f *VoiceFallback) AddFallback(name string, provider voice.Provider) {
	f.chain.Add(name, provider)
}

// Connect establishes a live session with the first healthy backend.
func (f *VoiceFallback) Connect(ctx context.Context, cfg voice.SessionConfig) (voice.SessionHandle, error) {
	return ExecuteWithResult(f.chain, func(p voice.Provider) (voice.SessionHandle, error) {
		return p.Connect(ctx, cfg)
	})
}

// Capabilities returns the primary backend's capabilities. Static metadata
// does not participate in failover.
func (f *VoiceFallback) Capabilities() voice.Capabilities {
	return f.chain.Primary().Capabilities()
}

// Name identifies the whole chain in logs and metrics.
func (f *VoiceFallback) Name() string {
	return fmt.Sprintf("chain(%s)", strings.Join(f.chain.Names(), ","))
}
