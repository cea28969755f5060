package playback_test

import (
	"sync"
	"testing"
	"time"

	"github.com/talandis/cadenza/pkg/pcm"
	"github.com/talandis/cadenza/pkg/playback"
)

// fakeClock is a manually advanced audio clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// bufferOf builds a mono buffer of the given duration at 24 kHz.
func bufferOf(t *testing.T, d time.Duration) *pcm.Buffer {
	t.Helper()
	n := int(d.Seconds() * 24000)
	return &pcm.Buffer{Data: [][]float32{make([]float32, n)}, SampleRate: 24000}
}

// newTestPlayer returns a player with a fake clock and an inert poll loop;
// tests drive recomputation through Sync.
func newTestPlayer(t *testing.T, sink playback.Sink, opts ...playback.PlayerOption) (*playback.Player, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	opts = append([]playback.PlayerOption{
		playback.WithClock(clock),
		playback.WithPollInterval(time.Hour),
	}, opts...)
	p := playback.NewPlayer(sink, opts...)
	t.Cleanup(p.Stop)
	return p, clock
}

func TestPlayerRateScaledCompletion(t *testing.T) {
	t.Parallel()
	var (
		mu    sync.Mutex
		ended int
		last  float64
	)
	sink := &playback.CollectorSink{}
	p, clock := newTestPlayer(t, sink,
		playback.WithProgressFunc(func(progress float64) {
			mu.Lock()
			last = progress
			mu.Unlock()
		}),
		playback.WithEndedFunc(func() {
			mu.Lock()
			ended++
			mu.Unlock()
		}),
	)
	if err := p.SetRate(2); err != nil {
		t.Fatalf("SetRate() error: %v", err)
	}
	if err := p.Start(bufferOf(t, 10*time.Second), 0); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// A 10 s buffer at rate 2.0 finishes after 5 real seconds.
	clock.Advance(4900 * time.Millisecond)
	p.Sync()
	mu.Lock()
	if ended != 0 {
		t.Fatal("playback ended before 5 real seconds")
	}
	if last < 0.97 || last > 0.99 {
		t.Errorf("progress at 4.9 s = %v, want ~0.98", last)
	}
	mu.Unlock()

	clock.Advance(100 * time.Millisecond)
	p.Sync()
	mu.Lock()
	defer mu.Unlock()
	if ended != 1 {
		t.Fatalf("ended callbacks = %d, want 1", ended)
	}
	if last != 1 {
		t.Errorf("final progress = %v, want 1", last)
	}
}

func TestPlayerPauseResume(t *testing.T) {
	t.Parallel()
	sink := &playback.CollectorSink{}
	p, clock := newTestPlayer(t, sink)
	if err := p.Start(bufferOf(t, 10*time.Second), 0); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	clock.Advance(2 * time.Second)
	p.Pause()
	if got := p.Progress(); got != 0.2 {
		t.Errorf("progress after pause = %v, want 0.2", got)
	}

	// Paused position does not advance with the clock.
	clock.Advance(30 * time.Second)
	if got := p.Progress(); got != 0.2 {
		t.Errorf("progress while paused = %v, want 0.2", got)
	}

	if err := p.Resume(); err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	clock.Advance(3 * time.Second)
	if got := p.Progress(); got != 0.5 {
		t.Errorf("progress after resume = %v, want 0.5", got)
	}

	// Resume plays from the accumulated offset, not from zero.
	entries := sink.Entries()
	if len(entries) != 2 {
		t.Fatalf("sink received %d plays, want 2", len(entries))
	}
	if entries[1].Offset != 2*time.Second {
		t.Errorf("resume offset = %v, want 2s", entries[1].Offset)
	}
}

func TestPlayerStopIdempotent(t *testing.T) {
	t.Parallel()
	var (
		mu    sync.Mutex
		ended int
	)
	sink := &playback.CollectorSink{}
	p, clock := newTestPlayer(t, sink, playback.WithEndedFunc(func() {
		mu.Lock()
		ended++
		mu.Unlock()
	}))

	// Stop before any Start is a no-op.
	p.Stop()
	mu.Lock()
	if ended != 0 {
		t.Fatal("Stop before Start fired ended callback")
	}
	mu.Unlock()

	if err := p.Start(bufferOf(t, time.Second), 0); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	clock.Advance(100 * time.Millisecond)
	p.Stop()
	p.Stop()
	mu.Lock()
	defer mu.Unlock()
	if ended != 1 {
		t.Errorf("ended callbacks = %d, want 1", ended)
	}
	if got := p.Progress(); got != 0 {
		t.Errorf("progress after stop = %v, want 0", got)
	}
}

func TestPlayerStartTearsDownPrevious(t *testing.T) {
	t.Parallel()
	sink := &playback.CollectorSink{}
	p, clock := newTestPlayer(t, sink)
	if err := p.Start(bufferOf(t, 10*time.Second), 0); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}
	clock.Advance(4 * time.Second)
	if err := p.Start(bufferOf(t, 2*time.Second), 0); err != nil {
		t.Fatalf("second Start() error: %v", err)
	}
	// Position restarts with the new buffer.
	if got := p.Progress(); got != 0 {
		t.Errorf("progress after restart = %v, want 0", got)
	}
	if got := len(sink.Entries()); got != 2 {
		t.Errorf("sink received %d plays, want 2", got)
	}
}

func TestPlayerSetRateMidPlay(t *testing.T) {
	t.Parallel()
	sink := &playback.CollectorSink{}
	p, clock := newTestPlayer(t, sink)
	if err := p.Start(bufferOf(t, 10*time.Second), 0); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	clock.Advance(2 * time.Second)
	if err := p.SetRate(2); err != nil {
		t.Fatalf("SetRate() error: %v", err)
	}
	// 2 s consumed at rate 1, then 2 s of clock at rate 2 adds 4 s.
	clock.Advance(2 * time.Second)
	if got := p.Progress(); got != 0.6 {
		t.Errorf("progress = %v, want 0.6", got)
	}

	if err := p.SetRate(0); err == nil {
		t.Error("SetRate(0) succeeded, want error")
	}
}

func TestPlayerStartAtOffset(t *testing.T) {
	t.Parallel()
	sink := &playback.CollectorSink{}
	p, clock := newTestPlayer(t, sink)
	if err := p.Start(bufferOf(t, 10*time.Second), 5*time.Second); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if got := p.Progress(); got != 0.5 {
		t.Errorf("initial progress = %v, want 0.5", got)
	}
	clock.Advance(time.Second)
	if got := p.Progress(); got != 0.6 {
		t.Errorf("progress = %v, want 0.6", got)
	}
}
