package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/ValentinKolb/twinkle/rpc/frame"
	"github.com/ValentinKolb/twinkle/rpc/transport"
)

// listener is the only reader of the socket and the single demultiplexer
// that routes every response to the waiter registered for its correlation id.
type listener struct {
	sock  transport.RecvHalf
	table *table
}

// run reads datagrams until the socket fails or is closed
func (l *listener) run() error {
	buf := make([]byte, common.MaxDatagramSize)
	for {
		n, err := l.sock.Recv(buf)
		if err != nil {
			if isTransient(err) {
				transientErrors.Inc()
				Logger.Debugf("Ignoring socket error: %v", err)
				continue
			}
			recvErrors.Inc()
			return fmt.Errorf("listener: failed to receive datagram: %w", err)
		}
		l.handle(buf[:n])
	}
}

// handle decodes one datagram and delivers it. Noise, late and duplicate responses
// are dropped, they must never stop the loop.
func (l *listener) handle(b []byte) {
	framesReceived.Inc()

	id, outcome, err := frame.DecodeResponse(b)
	if err != nil {
		if errors.Is(err, common.ErrTruncated) {
			framesTruncated.Inc()
		} else {
			framesMalformed.Inc()
		}
		Logger.Debugf("Discarding datagram of %d bytes: %v", len(b), err)
		return
	}

	w, found := l.table.take(id)
	if !found {
		responsesUnmatched.Inc()
		Logger.Debugf("Discarding response for unknown request ID %s", id)
		return
	}

	if !w.Deliver(outcome) {
		Logger.Debugf("Waiter for request ID %s is gone, response dropped", id)
	}
}
