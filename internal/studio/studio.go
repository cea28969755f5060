// Package studio ties the engine packages together into the application's
// script-to-speech workflow: segmentation, orchestrated synthesis, and WAV
// export.
package studio

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/talandis/cadenza/internal/observe"
	"github.com/talandis/cadenza/pkg/pcm"
	"github.com/talandis/cadenza/pkg/script"
	"github.com/talandis/cadenza/pkg/synth"
)

// Option configures a [Studio].
type Option func(*Studio)

// WithConcurrency caps how many synthesis calls run at once.
func WithConcurrency(n int) Option {
	return func(s *Studio) {
		if n >= 1 {
			s.concurrency = n
		}
	}
}

// WithMetrics overrides the metrics instance, mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Studio) { s.metrics = m }
}

// Studio runs whole scripts through segmentation and synthesis.
type Studio struct {
	providerName string
	provider     synth.Provider
	concurrency  int
	metrics      *observe.Metrics
}

// New creates a Studio synthesising through provider. providerName labels
// telemetry.
func New(providerName string, provider synth.Provider, opts ...Option) *Studio {
	s := &Studio{
		providerName: providerName,
		provider:     provider,
		concurrency:  synth.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Generate segments text and synthesises every segment, returning the chunks
// in script order. An empty or whitespace-only script fails with
// synth.ErrValidation before any network activity. progress may be nil.
func (s *Studio) Generate(ctx context.Context, text string, cfg synth.Config, progress synth.Progress) ([]synth.Chunk, error) {
	ctx, span := observe.StartSpan(ctx, "studio.Generate")
	defer span.End()
	log := observe.Logger(ctx)

	segments := script.Split(text)
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: script contains no speakable text", synth.ErrValidation)
	}
	log.Info("generating speech",
		"provider", s.providerName,
		"segments", len(segments),
		"speakers", len(cfg.Speakers),
	)

	provider := &meteredProvider{
		Provider: s.provider,
		name:     s.providerName,
		metrics:  s.metrics,
	}
	orch := synth.New(provider, synth.WithConcurrency(s.concurrency))
	start := time.Now()
	chunks, err := orch.Run(ctx, segments, cfg, func(done, total int) {
		s.metrics.RecordSegment(ctx, s.providerName, "resolved")
		if progress != nil {
			progress(done, total)
		}
	})
	s.metrics.GenerationDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderError(ctx, s.providerName, "synthesis")
		return nil, err
	}
	s.metrics.AudioChunks.Add(ctx, int64(len(chunks)))

	log.Info("speech generated",
		"chunks", len(chunks),
		"skipped", len(segments)-len(chunks),
		"elapsed", time.Since(start),
	)
	return chunks, nil
}

// meteredProvider records per-call synthesis latency around the wrapped
// provider.
type meteredProvider struct {
	synth.Provider
	name    string
	metrics *observe.Metrics
}

func (p *meteredProvider) Synthesize(ctx context.Context, text string, cfg synth.Config) (string, error) {
	start := time.Now()
	payload, err := p.Provider.Synthesize(ctx, text, cfg)
	p.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("provider", p.name)))
	return payload, err
}

// ExportWAV concatenates the chunks' audio in order and encodes the result
// as a WAV file.
func (s *Studio) ExportWAV(chunks []synth.Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: nothing to export", synth.ErrValidation)
	}
	bufs := make([]*pcm.Buffer, len(chunks))
	for i, c := range chunks {
		bufs[i] = c.Audio
	}
	combined, err := pcm.Combine(bufs)
	if err != nil {
		return nil, fmt.Errorf("studio: combining chunks: %w", err)
	}
	return pcm.EncodeWAV(combined), nil
}
