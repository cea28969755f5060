// Package live manages the lifecycle of a bidirectional streaming voice
// session: microphone capture, outbound audio framing, inbound event
// demultiplexing, turn accounting, and teardown.
//
// The wire protocol lives behind the [Dialer] and [Conn] interfaces; the
// [Manager] owns the session resources and guarantees the microphone is
// released after any terminal event.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/talandis/cadenza/pkg/pcm"
)

// ErrConnection reports a live-session transport failure: open, transmit, or
// close. It is always followed by resource teardown.
var ErrConnection = errors.New("live: connection error")

// InputSampleRate is the fixed rate of outbound microphone frames in Hz.
const InputSampleRate = 16000

// DefaultOutputSampleRate is the rate of inbound audio payloads in Hz.
const DefaultOutputSampleRate = 24000

// EventKind tags an inbound session event.
type EventKind int

const (
	// KindInputDelta carries a fragment of the user's speech transcript.
	KindInputDelta EventKind = iota

	// KindOutputDelta carries a fragment of the assistant's transcript.
	KindOutputDelta

	// KindTurnComplete marks the end of an exchange; the accumulated
	// transcripts are sealed into turn records.
	KindTurnComplete

	// KindAudio carries an inline base64 PCM payload of assistant speech.
	KindAudio

	// KindError carries a connection-level error. The session is torn down
	// after delivery.
	KindError
)

// Event is one demultiplexed inbound session event. Close is signalled by
// the events channel closing, not by an Event value.
type Event struct {
	Kind EventKind

	// Text is the transcript fragment for delta events.
	Text string

	// Audio is the base64-encoded PCM payload for audio events.
	Audio string

	// Err is the connection error for error events.
	Err error
}

// Speaker identifies which side of the conversation a turn belongs to.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one sealed transcript record.
type Turn struct {
	ID      string
	Speaker Speaker
	Text    string
}

// SessionConfig configures a live session at dial time.
type SessionConfig struct {
	// Model is the provider model identifier.
	Model string

	// Voice is the prebuilt voice for spoken responses.
	Voice string

	// Instructions is an optional system prompt.
	Instructions string
}

// Conn is an established live connection. SendAudio transmits one raw PCM
// frame (16 kHz, s16le, mono). Events delivers demultiplexed inbound events
// and is closed by the implementation when the connection terminates. Close
// is idempotent.
type Conn interface {
	SendAudio(frame []byte) error
	Events() <-chan Event
	Close() error
}

// Dialer opens live connections.
type Dialer interface {
	Dial(ctx context.Context, cfg SessionConfig) (Conn, error)
}

// Microphone captures raw PCM frames (16 kHz, s16le, mono, fixed frame
// size). The frame channel is closed when capture ends. Stop is idempotent.
type Microphone interface {
	Start(ctx context.Context) (<-chan []byte, error)
	Stop() error
}

// Callbacks receive session activity. All callbacks are invoked from the
// manager's goroutines, one event at a time, in arrival order. Any field
// may be nil.
type Callbacks struct {
	// OnTranscript fires after every transcript delta with the full
	// accumulated text of the current exchange.
	OnTranscript func(input, output string)

	// OnTurns fires after a turn-complete event with the updated history.
	OnTurns func(turns []Turn)

	// OnAudio fires for each decoded assistant audio chunk, immediately on
	// arrival.
	OnAudio func(buf *pcm.Buffer)

	// OnError fires on connection or decode errors. The session is stopped
	// right after.
	OnError func(err error)

	// OnClose fires when the connection terminates. The session is stopped
	// right after.
	OnClose func()
}

// Option configures a [Manager].
type Option func(*Manager)

// WithOutputSampleRate overrides the sample rate inbound audio payloads are
// decoded at.
func WithOutputSampleRate(rate int) Option {
	return func(m *Manager) {
		if rate > 0 {
			m.outputRate = rate
		}
	}
}

// Manager owns one live session at a time. Starting a session while one is
// active fully stops the previous one first, so the microphone is never
// captured twice. All methods are safe for concurrent use, and Stop is safe
// to call at any time, any number of times.
type Manager struct {
	dialer     Dialer
	mic        Microphone
	outputRate int

	// startMu serialises Start end to end so two racing Starts cannot both
	// acquire the microphone or orphan each other's connection.
	startMu sync.Mutex

	mu     sync.Mutex
	gen    uint64 // increments on every start/stop; stale goroutines compare and drop
	conn   Conn
	cb     Callbacks
	input  strings.Builder
	output strings.Builder
	turns  []Turn
	active bool
}

// NewManager creates a Manager capturing from mic and connecting through
// dialer.
func NewManager(dialer Dialer, mic Microphone, opts ...Option) *Manager {
	m := &Manager{
		dialer:     dialer,
		mic:        mic,
		outputRate: DefaultOutputSampleRate,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a session. Any previously active session is fully stopped
// first and the transcript state is cleared. The microphone starts capturing
// before the dial resolves; early frames wait in the capture channel and are
// transmitted once the connection is up.
func (m *Manager) Start(ctx context.Context, cfg SessionConfig, cb Callbacks) error {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	m.Stop()

	frames, err := m.mic.Start(ctx)
	if err != nil {
		return fmt.Errorf("live: starting microphone: %w", err)
	}

	conn, err := m.dialer.Dial(ctx, cfg)
	if err != nil {
		if stopErr := m.mic.Stop(); stopErr != nil {
			slog.Warn("releasing microphone after failed dial", "error", stopErr)
		}
		return fmt.Errorf("%w: dial: %v", ErrConnection, err)
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.conn = conn
	m.cb = cb
	m.input.Reset()
	m.output.Reset()
	m.turns = nil
	m.active = true
	m.mu.Unlock()

	go m.pump(gen, conn, frames)
	go m.receive(gen, conn)
	return nil
}

// Stop tears the active session down: the microphone is released
// synchronously and the connection close is requested asynchronously so the
// caller never blocks on it. Stopping twice, or before any Start, is a
// no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.gen++
	conn := m.conn
	m.conn = nil
	m.active = false
	m.input.Reset()
	m.output.Reset()
	m.mu.Unlock()

	if err := m.mic.Stop(); err != nil {
		slog.Warn("releasing microphone", "error", err)
	}
	if conn != nil {
		go func() {
			if err := conn.Close(); err != nil {
				slog.Warn("closing live connection", "error", err)
			}
		}()
	}
}

// Turns returns a copy of the sealed turn history of the current session.
func (m *Manager) Turns() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// pump transmits microphone frames until capture ends or the session is
// superseded.
func (m *Manager) pump(gen uint64, conn Conn, frames <-chan []byte) {
	for frame := range frames {
		if !m.alive(gen) {
			return
		}
		if err := conn.SendAudio(frame); err != nil {
			m.fail(gen, fmt.Errorf("%w: transmit: %v", ErrConnection, err))
			return
		}
	}
}

// receive demultiplexes inbound events until the events channel closes.
func (m *Manager) receive(gen uint64, conn Conn) {
	for ev := range conn.Events() {
		m.handle(gen, ev)
	}
	// Channel closed: the connection terminated.
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	onClose := m.cb.OnClose
	m.mu.Unlock()
	if onClose != nil {
		onClose()
	}
	m.Stop()
}

func (m *Manager) handle(gen uint64, ev Event) {
	m.mu.Lock()
	if m.gen != gen {
		// Session already stopped; late events are no-ops.
		m.mu.Unlock()
		return
	}
	cb := m.cb

	switch ev.Kind {
	case KindInputDelta:
		m.input.WriteString(ev.Text)
		input, output := m.input.String(), m.output.String()
		m.mu.Unlock()
		if cb.OnTranscript != nil {
			cb.OnTranscript(input, output)
		}

	case KindOutputDelta:
		m.output.WriteString(ev.Text)
		input, output := m.input.String(), m.output.String()
		m.mu.Unlock()
		if cb.OnTranscript != nil {
			cb.OnTranscript(input, output)
		}

	case KindTurnComplete:
		m.sealLocked()
		turns := make([]Turn, len(m.turns))
		copy(turns, m.turns)
		m.mu.Unlock()
		if cb.OnTurns != nil {
			cb.OnTurns(turns)
		}

	case KindAudio:
		m.mu.Unlock()
		buf, err := m.decode(ev.Audio)
		if err != nil {
			m.fail(gen, err)
			return
		}
		if cb.OnAudio != nil && buf.Len() > 0 {
			cb.OnAudio(buf)
		}

	case KindError:
		m.mu.Unlock()
		m.fail(gen, fmt.Errorf("%w: %v", ErrConnection, ev.Err))

	default:
		m.mu.Unlock()
		slog.Warn("dropping live event of unknown kind", "kind", int(ev.Kind))
	}
}

// sealLocked turns the accumulated transcripts into zero, one, or two turn
// records: user first, then assistant, empty sides omitted. Call with m.mu
// held.
func (m *Manager) sealLocked() {
	if text := strings.TrimSpace(m.input.String()); text != "" {
		m.turns = append(m.turns, Turn{ID: uuid.NewString(), Speaker: SpeakerUser, Text: text})
	}
	if text := strings.TrimSpace(m.output.String()); text != "" {
		m.turns = append(m.turns, Turn{ID: uuid.NewString(), Speaker: SpeakerAssistant, Text: text})
	}
	m.input.Reset()
	m.output.Reset()
}

func (m *Manager) decode(payload string) (*pcm.Buffer, error) {
	raw, err := pcm.DecodeBase64(payload)
	if err != nil {
		return nil, err
	}
	return pcm.FromPCM16(raw, m.outputRate, 1)
}

// fail reports err and tears the session down, provided it is still the
// live generation.
func (m *Manager) fail(gen uint64, err error) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	onError := m.cb.OnError
	m.mu.Unlock()
	if onError != nil {
		onError(err)
	}
	m.Stop()
}

func (m *Manager) alive(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}
