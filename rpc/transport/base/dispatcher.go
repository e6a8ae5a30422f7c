package base

import (
	"fmt"
	"github.com/ValentinKolb/twinkle/rpc/transport"
)

// dispatcher is the only writer of the socket.
// It drains the outbound queue and sends every frame as one datagram.
type dispatcher struct {
	queue *outboundQueue
	sock  transport.SendHalf
}

// run sends frames until the queue is closed. A failed send ends the loop,
// retrying is up to the caller of Dispatch since only it knows whether a response arrived.
func (d *dispatcher) run() error {
	for {
		b, ok := d.queue.pop()
		if !ok {
			Logger.Debugf("Dispatcher stopped, outbound queue closed")
			return nil
		}

		if err := d.sock.Send(b); err != nil {
			if isTransient(err) {
				transientErrors.Inc()
				Logger.Debugf("Dropped frame of %d bytes: %v", len(b), err)
				continue
			}
			sendErrors.Inc()
			return fmt.Errorf("dispatcher: failed to send frame: %w", err)
		}
		framesSent.Inc()
	}
}
