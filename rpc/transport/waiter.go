package transport

import (
	"github.com/ValentinKolb/twinkle/rpc/common"
	"sync/atomic"
)

// Waiter is a one-shot promise for the outcome of one attempt of a call.
// It is written at most once (by the listener) and read at most once (by the caller),
// delivery never blocks.
type Waiter struct {
	ch        chan common.Outcome
	delivered atomic.Bool
	abandoned atomic.Bool
}

// NewWaiter creates an empty waiter
func NewWaiter() *Waiter {
	return &Waiter{ch: make(chan common.Outcome, 1)}
}

// Deliver stores the outcome.
// It returns false if the waiter already had an outcome or was abandoned.
func (w *Waiter) Deliver(o common.Outcome) bool {
	if w.abandoned.Load() {
		return false
	}
	if !w.delivered.CompareAndSwap(false, true) {
		return false
	}
	w.ch <- o // capacity 1, never blocks
	return true
}

// Poll returns the outcome if one was delivered and not yet read
func (w *Waiter) Poll() (common.Outcome, bool) {
	select {
	case o := <-w.ch:
		return o, true
	default:
		return common.Outcome{}, false
	}
}

// Abandon marks the waiter as superseded, later deliveries are dropped
func (w *Waiter) Abandon() {
	w.abandoned.Store(true)
}

// Abandoned reports whether the waiter was superseded
func (w *Waiter) Abandoned() bool {
	return w.abandoned.Load()
}
