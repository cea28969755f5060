package playback

import (
	"sync"
	"time"

	"github.com/talandis/cadenza/pkg/pcm"
)

// Source is a handle to audio that has been handed to a [Sink]. Stop must be
// safe to call more than once.
type Source interface {
	Stop()
}

// Sink renders audio buffers. The [Player] uses Play for transport-controlled
// playback; the [Queue] uses Schedule for gapless streaming.
//
// Play begins rendering buf from the given in-buffer offset at the given
// rate. Schedule begins rendering buf when the sink's clock reaches at.
type Sink interface {
	Play(buf *pcm.Buffer, offset time.Duration, rate float64) (Source, error)
	Schedule(buf *pcm.Buffer, at time.Duration) (Source, error)
}

// ScheduledBuffer is one buffer retained by a [CollectorSink].
type ScheduledBuffer struct {
	Buf    *pcm.Buffer
	At     time.Duration
	Offset time.Duration
	Rate   float64
}

// Compile-time interface assertion.
var _ Sink = (*CollectorSink)(nil)

// CollectorSink is a Sink that retains everything handed to it instead of
// rendering. It backs the CLI's live mode (response audio is collected for
// export) and tests.
type CollectorSink struct {
	mu      sync.Mutex
	entries []ScheduledBuffer
}

// Play implements Sink.
func (s *CollectorSink) Play(buf *pcm.Buffer, offset time.Duration, rate float64) (Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, ScheduledBuffer{Buf: buf, Offset: offset, Rate: rate})
	return &collectorSource{}, nil
}

// Schedule implements Sink.
func (s *CollectorSink) Schedule(buf *pcm.Buffer, at time.Duration) (Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, ScheduledBuffer{Buf: buf, At: at, Rate: 1})
	return &collectorSource{}, nil
}

// Entries returns a copy of everything collected so far, in arrival order.
func (s *CollectorSink) Entries() []ScheduledBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScheduledBuffer, len(s.entries))
	copy(out, s.entries)
	return out
}

// Buffers returns the collected buffers in arrival order.
func (s *CollectorSink) Buffers() []*pcm.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	bufs := make([]*pcm.Buffer, len(s.entries))
	for i, e := range s.entries {
		bufs[i] = e.Buf
	}
	return bufs
}

type collectorSource struct {
	once sync.Once
}

func (s *collectorSource) Stop() {
	s.once.Do(func() {})
}
