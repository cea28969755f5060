package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/talandis/cadenza/pkg/pcm"
)

// Queue schedules a stream of buffers for gapless sequential playback.
// Each pushed buffer starts at the later of the previous buffer's end time
// and the current clock reading, so chunks arriving mid-playback append to
// the tail while a chunk arriving into an idle queue starts immediately.
// Safe for concurrent use.
type Queue struct {
	sink  Sink
	clock Clock

	mu   sync.Mutex
	tail time.Duration
}

// NewQueue creates a Queue scheduling through sink against clock.
func NewQueue(sink Sink, clock Clock) *Queue {
	return &Queue{sink: sink, clock: clock}
}

// Push schedules buf and returns its start time on the audio clock.
func (q *Queue) Push(buf *pcm.Buffer) (time.Duration, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	start := q.clock.Now()
	if q.tail > start {
		start = q.tail
	}
	if _, err := q.sink.Schedule(buf, start); err != nil {
		return 0, fmt.Errorf("playback: scheduling chunk: %w", err)
	}
	q.tail = start + buf.Duration()
	return start, nil
}

// Reset forgets the scheduling tail. The next Push starts at the current
// clock reading.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tail = 0
}
