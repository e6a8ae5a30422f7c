// Package transport defines the interfaces and abstractions of the datagram
// transport used by the twinkle client.
//
// Key Components:
//
//   - IClientTransport: connection management, the dispatcher/listener lifecycle
//     and the Dispatch operation that binds a frame to a waiter.
//
//   - IClientConnector: socket specific dialing and tuning (see the udp package).
//
//   - SendHalf / RecvHalf: the two independently owned halves of a connected
//     datagram socket, created by Split.
//
//   - Waiter: one-shot promise a call uses to learn its outcome.
package transport
