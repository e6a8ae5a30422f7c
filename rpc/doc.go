// Package rpc provides the client side of the twinkle protocol, a small
// request/response key-value protocol carried in UDP datagrams.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures used across the RPC system,
//     including requests, opcodes, errors, configuration, retry policy and logging.
//
//   - frame: The binary frame codec (correlation id, opcode, key length prefix).
//
//   - transport: The client transport abstraction and the one-shot Waiter.
//     The base subpackage implements the correlation table, the outbound queue
//     and the dispatcher and listener loops, udp binds it to a datagram socket.
//
//   - client: The public call surface (Ping, Get, Set, Unset) with the retry loop
//     that hides datagram loss from the caller.
//
//   - testing: An in-process peer and a shared test suite for client transports.
package rpc
