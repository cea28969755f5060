// Package mock provides a scriptable synth.Provider for tests.
package mock

import (
	"context"

	"github.com/talandis/cadenza/pkg/pcm"
	"github.com/talandis/cadenza/pkg/synth"
)

// Compile-time interface assertion.
var _ synth.Provider = (*Provider)(nil)

// Provider is a synth.Provider whose behaviour is driven by Fn. When Fn is
// nil, every call returns a short non-empty payload.
type Provider struct {
	// Rate overrides the reported sample rate. Zero means 24000.
	Rate int

	// Fn handles each Synthesize call. May be nil.
	Fn func(ctx context.Context, text string, cfg synth.Config) (string, error)
}

// Synthesize dispatches to Fn, or returns a fixed two-sample payload.
func (p *Provider) Synthesize(ctx context.Context, text string, cfg synth.Config) (string, error) {
	if p.Fn != nil {
		return p.Fn(ctx, text, cfg)
	}
	return pcm.EncodeBase64(pcm.ToPCM16([]float32{0.1, -0.1})), nil
}

// SampleRate returns Rate, defaulting to 24000 Hz.
func (p *Provider) SampleRate() int {
	if p.Rate == 0 {
		return 24000
	}
	return p.Rate
}

// PayloadOf builds a base64 PCM payload with n samples of the given value.
// Handy for asserting which segment produced which chunk.
func PayloadOf(n int, value float32) string {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	return pcm.EncodeBase64(pcm.ToPCM16(samples))
}
