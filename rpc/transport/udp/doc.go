// Package udp implements the UDP socket transport of the twinkle client.
// It provides the concrete implementation of the base package's connector
// interface: a connected UDP socket on an ephemeral local port, with optional
// read and write buffer sizes taken from common.SocketConf.
//
// See the base package documentation for the dispatcher / listener design.
package udp
