package synth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/talandis/cadenza/pkg/pcm"
)

// DefaultConcurrency is the number of synthesis calls allowed in flight at
// once when no explicit limit is configured.
const DefaultConcurrency = 4

// Progress is invoked after each segment resolves (success, empty result,
// or the error that aborts the batch) with the number of resolved segments
// so far and the total. Invocations are serialised, so done is monotonically
// non-decreasing; it reaches total exactly once when every segment resolved.
type Progress func(done, total int)

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithConcurrency caps how many synthesis calls run at once. A limit of 1
// recovers strictly sequential behaviour. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n >= 1 {
			o.limit = n
		}
	}
}

// Orchestrator issues one synthesis call per segment, concurrently, and
// returns the results in original segment order regardless of completion
// order. A single segment failure aborts the whole batch: partial speech
// without a clear indication would mislead the caller.
type Orchestrator struct {
	provider Provider
	limit    int
}

// New creates an Orchestrator backed by provider.
func New(provider Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		limit:    DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run synthesises every segment and returns the chunks in segment order.
// Segments that resolve without an audio payload are skipped (omitted from
// the result); any segment error fails the whole batch with no partial
// result. progress may be nil.
func (o *Orchestrator) Run(ctx context.Context, segments []string, cfg Config, progress Progress) ([]Chunk, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: no segments to synthesise", ErrValidation)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	total := len(segments)
	// Results are index-tagged so completion order never leaks into the
	// output order. nil entries are skipped segments.
	results := make([]*Chunk, total)

	var mu sync.Mutex
	done := 0
	resolved := func() {
		mu.Lock()
		defer mu.Unlock()
		done++
		if progress != nil {
			progress(done, total)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.limit)
	for i, text := range segments {
		g.Go(func() error {
			payload, err := o.provider.Synthesize(gctx, text, cfg)
			if err != nil {
				resolved()
				return fmt.Errorf("synth: segment %d: %w", i, err)
			}
			if payload == "" {
				slog.Debug("segment produced no audio, skipping", "segment", i)
				resolved()
				return nil
			}
			raw, err := pcm.DecodeBase64(payload)
			if err != nil {
				resolved()
				return fmt.Errorf("synth: segment %d: %w", i, err)
			}
			buf, err := pcm.FromPCM16(raw, o.provider.SampleRate(), 1)
			if err != nil {
				resolved()
				return fmt.Errorf("synth: segment %d: %w", i, err)
			}
			results[i] = &Chunk{
				ID:    uuid.NewString(),
				Text:  text,
				Audio: buf,
			}
			resolved()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, total)
	for _, r := range results {
		if r != nil {
			chunks = append(chunks, *r)
		}
	}
	return chunks, nil
}
