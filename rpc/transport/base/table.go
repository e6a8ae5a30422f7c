package base

import (
	"github.com/ValentinKolb/twinkle/rpc/transport"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// table maps correlation ids to the waiter of the current attempt.
// It is the only state shared between the dispatch path and the listener.
type table struct {
	waiters *xsync.MapOf[uuid.UUID, *transport.Waiter]
}

func newTable() *table {
	return &table{waiters: xsync.NewMapOf[uuid.UUID, *transport.Waiter]()}
}

// register stores w under id. A waiter already stored under id is abandoned and returned.
func (t *table) register(id uuid.UUID, w *transport.Waiter) *transport.Waiter {
	prev, loaded := t.waiters.LoadAndStore(id, w)
	if !loaded {
		return nil
	}
	prev.Abandon()
	return prev
}

// take removes and returns the waiter stored under id
func (t *table) take(id uuid.UUID) (*transport.Waiter, bool) {
	return t.waiters.LoadAndDelete(id)
}

// len returns the number of outstanding entries
func (t *table) len() int {
	return t.waiters.Size()
}

// clear drops all entries, used when the transport stops
func (t *table) clear() {
	t.waiters.Clear()
}
