// Package playback schedules decoded audio buffers against a shared audio
// clock.
//
// [Player] drives one buffer at a time through an Idle, Playing, Paused
// state machine with transport controls and rate scaling. [Queue] schedules
// a stream of buffers back to back with no gaps or overlaps.
package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/talandis/cadenza/pkg/pcm"
)

// DefaultPollInterval is how often a playing Player recomputes progress.
const DefaultPollInterval = 20 * time.Millisecond

type state int

const (
	stateIdle state = iota
	statePlaying
	statePaused
)

// PlayerOption configures a [Player].
type PlayerOption func(*Player)

// WithClock overrides the audio clock, mainly for tests.
func WithClock(c Clock) PlayerOption {
	return func(p *Player) { p.clock = c }
}

// WithPollInterval overrides how often progress is recomputed while playing.
func WithPollInterval(d time.Duration) PlayerOption {
	return func(p *Player) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithProgressFunc registers a callback fired with progress in [0, 1] on
// every recompute while playing.
func WithProgressFunc(fn func(progress float64)) PlayerOption {
	return func(p *Player) { p.onProgress = fn }
}

// WithEndedFunc registers a callback fired when active playback ends, either
// by reaching the end of the buffer or by an explicit Stop. Callers use it
// to advance to the next queued item.
func WithEndedFunc(fn func()) PlayerOption {
	return func(p *Player) { p.onEnded = fn }
}

// Player plays one buffer at a time. Position is tracked as an accumulated
// in-buffer offset plus the clock time elapsed since the last start, scaled
// by the playback rate. All methods are safe for concurrent use.
type Player struct {
	sink         Sink
	clock        Clock
	pollInterval time.Duration
	onProgress   func(float64)
	onEnded      func()

	mu        sync.Mutex
	state     state
	buf       *pcm.Buffer
	rate      float64
	offset    time.Duration // accumulated in-buffer position
	startedAt time.Duration // clock reading at the last (re)start
	src       Source
	pollStop  chan struct{}
}

// NewPlayer creates a Player rendering through sink.
func NewPlayer(sink Sink, opts ...PlayerOption) *Player {
	p := &Player{
		sink:         sink,
		clock:        NewMonotonicClock(),
		pollInterval: DefaultPollInterval,
		rate:         1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins playing buf from offset, tearing down any active playback
// first. offset is a position within the buffer at normal rate.
func (p *Player) Start(buf *pcm.Buffer, offset time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardownLocked()
	p.buf = buf
	p.offset = offset
	return p.playLocked()
}

// Pause folds the elapsed playing time into the stored offset and stops the
// active source. A later Resume continues from the accumulated position.
// Pausing while not playing is a no-op.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != statePlaying {
		return
	}
	p.offset = p.positionLocked()
	p.teardownLocked()
	p.state = statePaused
}

// Resume continues playback from the position Pause accumulated. Resuming
// while not paused is a no-op.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != statePaused {
		return nil
	}
	return p.playLocked()
}

// Stop unconditionally tears down the active source and resets the
// accumulated offset to zero. Stopping active playback fires the ended
// callback; stopping twice, or before any Start, is a no-op.
func (p *Player) Stop() {
	p.mu.Lock()
	wasActive := p.state != stateIdle
	p.teardownLocked()
	p.buf = nil
	p.offset = 0
	p.state = stateIdle
	onEnded := p.onEnded
	p.mu.Unlock()
	if wasActive && onEnded != nil {
		onEnded()
	}
}

// SetRate changes the playback rate multiplier. When playing, the elapsed
// time at the old rate is folded into the offset first so the position does
// not jump. Rates must be positive.
func (p *Player) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("playback: rate must be positive, got %v", rate)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == statePlaying {
		p.offset = p.positionLocked()
		p.teardownLocked()
		p.rate = rate
		p.state = statePaused
		return p.playLocked()
	}
	p.rate = rate
	return nil
}

// Rate returns the current playback rate multiplier.
func (p *Player) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// Progress returns the current position as a fraction of the buffer
// duration, clamped to [0, 1]. Zero when idle.
func (p *Player) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progressLocked()
}

// Sync recomputes progress once, fires the progress callback, and stops
// playback when the end of the buffer is reached. A playing Player calls it
// on every poll tick; tests drive it directly with a fake clock.
func (p *Player) Sync() {
	p.mu.Lock()
	if p.state != statePlaying {
		p.mu.Unlock()
		return
	}
	progress := p.progressLocked()
	ended := progress >= 1
	if ended {
		p.teardownLocked()
		p.buf = nil
		p.offset = 0
		p.state = stateIdle
	}
	onProgress := p.onProgress
	onEnded := p.onEnded
	p.mu.Unlock()

	if onProgress != nil {
		onProgress(progress)
	}
	if ended && onEnded != nil {
		onEnded()
	}
}

// playLocked starts the sink source at the accumulated offset and begins
// progress polling. Call with p.mu held.
func (p *Player) playLocked() error {
	src, err := p.sink.Play(p.buf, p.offset, p.rate)
	if err != nil {
		p.state = stateIdle
		return fmt.Errorf("playback: starting source: %w", err)
	}
	p.src = src
	p.startedAt = p.clock.Now()
	p.state = statePlaying

	stop := make(chan struct{})
	p.pollStop = stop
	go p.poll(stop)
	return nil
}

// positionLocked returns the current in-buffer position: the accumulated
// offset plus wall-clock time since the last start scaled by rate. Call with
// p.mu held.
func (p *Player) positionLocked() time.Duration {
	if p.state != statePlaying {
		return p.offset
	}
	elapsed := p.clock.Now() - p.startedAt
	return p.offset + time.Duration(float64(elapsed)*p.rate)
}

// progressLocked returns the position as a clamped fraction of the buffer
// duration. Call with p.mu held.
func (p *Player) progressLocked() float64 {
	if p.buf == nil {
		return 0
	}
	total := p.buf.Duration()
	if total <= 0 {
		return 1
	}
	progress := float64(p.positionLocked()) / float64(total)
	if progress > 1 {
		return 1
	}
	if progress < 0 {
		return 0
	}
	return progress
}

// teardownLocked stops the active source and the poll loop. Safe to call in
// any state. Call with p.mu held.
func (p *Player) teardownLocked() {
	if p.src != nil {
		p.src.Stop()
		p.src = nil
	}
	if p.pollStop != nil {
		close(p.pollStop)
		p.pollStop = nil
	}
}

func (p *Player) poll(stop <-chan struct{}) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.Sync()
		}
	}
}
