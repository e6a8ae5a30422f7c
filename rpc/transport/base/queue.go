package base

import (
	"github.com/edwingeng/deque/v2"
	"sync"
)

// outboundQueue is an unbounded FIFO of encoded frames waiting for the dispatcher.
// Any number of goroutines may push, exactly one goroutine pops.
type outboundQueue struct {
	mu     sync.Mutex
	frames *deque.Deque[[]byte]
	signal chan struct{} // wakes up the consumer, capacity 1
	closed bool
}

func newOutboundQueue() *outboundQueue {
	return &outboundQueue{
		frames: deque.NewDeque[[]byte](),
		signal: make(chan struct{}, 1),
	}
}

// push appends a frame, it never blocks and returns false once the queue is closed
func (q *outboundQueue) push(b []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.frames.PushFront(b)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// pop removes the oldest frame, blocking while the queue is empty.
// It returns false after close, frames still queued at that point are dropped.
func (q *outboundQueue) pop() ([]byte, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		if q.frames.Len() > 0 {
			b := q.frames.PopBack()
			q.mu.Unlock()
			return b, true
		}
		q.mu.Unlock()

		<-q.signal
	}
}

// len returns the number of queued frames
func (q *outboundQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.frames.Len()
}

// close wakes up the consumer and rejects further pushes
func (q *outboundQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
