package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// DefaultFrameBytes is 100 ms of 16 kHz s16le mono audio.
const DefaultFrameBytes = 3200

// Compile-time interface assertion.
var _ Microphone = (*ReaderMicrophone)(nil)

// ReaderMicrophone captures fixed-size PCM frames from an io.Reader, e.g.
// stdin fed by an external capture tool. The reader is expected to deliver
// 16 kHz s16le mono audio.
type ReaderMicrophone struct {
	r          io.Reader
	frameBytes int

	mu     sync.Mutex
	cancel context.CancelFunc
}

// MicOption configures a [ReaderMicrophone].
type MicOption func(*ReaderMicrophone)

// WithFrameBytes overrides the capture frame size in bytes. The size must be
// even so frames hold whole 16-bit samples.
func WithFrameBytes(n int) MicOption {
	return func(m *ReaderMicrophone) {
		if n > 0 && n%2 == 0 {
			m.frameBytes = n
		}
	}
}

// NewReaderMicrophone creates a microphone reading from r.
func NewReaderMicrophone(r io.Reader, opts ...MicOption) *ReaderMicrophone {
	m := &ReaderMicrophone{r: r, frameBytes: DefaultFrameBytes}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins capture and returns the frame channel. The channel is closed
// when the reader is exhausted, the context is cancelled, or Stop is called.
// Starting while already capturing is an error; release with Stop first.
func (m *ReaderMicrophone) Start(ctx context.Context) (<-chan []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil, fmt.Errorf("live: microphone already capturing")
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	// Buffered so frames captured while the connection is still being
	// established are not dropped.
	ch := make(chan []byte, 64)
	go m.capture(ctx, ch)
	return ch, nil
}

// Stop ends capture. Idempotent. A frame read already in flight cannot be
// interrupted: on a quiet reader (e.g. stdin) the capture goroutine stays
// parked until the reader yields or reaches EOF, and only then closes the
// frame channel. Anything it reads after Stop is discarded, never delivered.
func (m *ReaderMicrophone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	return nil
}

func (m *ReaderMicrophone) capture(ctx context.Context, ch chan<- []byte) {
	defer close(ch)
	for {
		frame := make([]byte, m.frameBytes)
		n, err := io.ReadFull(m.r, frame)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			// A short final frame is still delivered.
			if errors.Is(err, io.ErrUnexpectedEOF) && n > 0 {
				select {
				case ch <- frame[:n]:
				case <-ctx.Done():
				}
			}
			return
		}
		select {
		case ch <- frame:
		case <-ctx.Done():
			return
		}
	}
}
