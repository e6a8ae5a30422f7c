// Package base provides the core of the datagram client transport, independent
// of the specific socket type. It serves as a base layer that is extended with
// socket specific connectors (see the udp package).
//
// The package focuses on:
//   - Correlating responses to requests over a medium without ordering or delivery guarantees
//   - Keeping the read path independent of slow callers
//   - Surviving noise, late and duplicate datagrams
//
// Key Components:
//
//   - table: correlation id -> waiter of the current attempt. Registering under an
//     existing id supersedes (abandons) the previous waiter, taking an entry is an
//     atomic lookup and remove. Every operation is a single map operation.
//
//   - outboundQueue: unbounded FIFO between callers and the dispatcher, push never blocks.
//
//   - dispatcher: the only writer of the socket, sends every queued frame as one datagram.
//     A failed send stops the transport.
//
//   - listener: the only reader of the socket. Decodes every datagram, takes the matching
//     table entry and delivers the outcome without blocking. Truncated, malformed,
//     unknown, late and duplicate datagrams are counted and dropped.
//
//   - clientTransport: owns the socket, moves its halves into the two loops at Connect
//     and joins them in Run.
//
// Metrics:
//
//	Counters for sent, received, discarded and unmatched frames as well as socket
//	errors are registered with github.com/VictoriaMetrics/metrics.
//
// Thread Safety:
//
//	Dispatch may be called from any number of goroutines, Run is called once.
package base
