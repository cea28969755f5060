// Package mock provides test doubles for the live session interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/talandis/cadenza/pkg/live"
)

// Compile-time interface assertions.
var (
	_ live.Conn       = (*Conn)(nil)
	_ live.Dialer     = (*Dialer)(nil)
	_ live.Microphone = (*Microphone)(nil)
)

// Conn is a scriptable live.Conn. Tests feed inbound events with Emit and
// terminate the connection with CloseEvents.
type Conn struct {
	// SendErr, when set, is returned by every SendAudio call.
	SendErr error

	mu       sync.Mutex
	sent     [][]byte
	events   chan live.Event
	closed   int
	evClosed bool
}

// NewConn creates a Conn with a buffered event channel.
func NewConn() *Conn {
	return &Conn{events: make(chan live.Event, 64)}
}

// SendAudio records the frame.
func (c *Conn) SendAudio(frame []byte) error {
	if c.SendErr != nil {
		return c.SendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	c.sent = append(c.sent, cp)
	return nil
}

// Events implements live.Conn.
func (c *Conn) Events() <-chan live.Event { return c.events }

// Close counts invocations and closes the event channel.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	c.CloseEvents()
	return nil
}

// Emit delivers an inbound event. Events emitted after the channel closed
// are dropped, mirroring a terminated connection.
func (c *Conn) Emit(ev live.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.evClosed {
		return
	}
	c.events <- ev
}

// CloseEvents closes the event channel, signalling connection termination.
func (c *Conn) CloseEvents() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.evClosed {
		c.evClosed = true
		close(c.events)
	}
}

// Sent returns a copy of the transmitted frames in order.
func (c *Conn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// Closed returns how many times Close was called.
func (c *Conn) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Dialer hands out a fixed Conn or a fixed error.
type Dialer struct {
	Conn *Conn
	Err  error

	mu    sync.Mutex
	dials int
	cfg   live.SessionConfig
}

// Dial implements live.Dialer.
func (d *Dialer) Dial(ctx context.Context, cfg live.SessionConfig) (live.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.cfg = cfg
	d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Conn, nil
}

// Dials returns how many times Dial was called.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Config returns the config of the last Dial.
func (d *Dialer) Config() live.SessionConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Microphone is a scriptable live.Microphone. Tests push frames with Feed
// and end capture with EndCapture.
type Microphone struct {
	// StartErr, when set, is returned by Start.
	StartErr error

	mu      sync.Mutex
	frames  chan []byte
	started int
	stopped int
	endOnce sync.Once
}

// Start implements live.Microphone.
func (m *Microphone) Start(ctx context.Context) (<-chan []byte, error) {
	if m.StartErr != nil {
		return nil, m.StartErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
	m.frames = make(chan []byte, 64)
	m.endOnce = sync.Once{}
	return m.frames, nil
}

// Stop implements live.Microphone.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
	if m.frames != nil {
		m.endOnce.Do(func() { close(m.frames) })
	}
	return nil
}

// Feed pushes one captured frame.
func (m *Microphone) Feed(frame []byte) {
	m.mu.Lock()
	ch := m.frames
	m.mu.Unlock()
	ch <- frame
}

// EndCapture closes the frame channel without counting a Stop.
func (m *Microphone) EndCapture() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frames != nil {
		m.endOnce.Do(func() { close(m.frames) })
	}
}

// Counts returns how many times Start and Stop were called.
func (m *Microphone) Counts() (started, stopped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started, m.stopped
}
