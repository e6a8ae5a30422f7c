// Package testing provides a standardised test suite for twinkle clients and
// the loopback peer it runs against.
//
// The package contains:
//   - Peer: an in-memory twinkle server on a loopback UDP socket that can drop,
//     delay, duplicate and surround answers with noise
//   - RunClientTests: behavioural tests every transport must pass (ping, get/set/unset,
//     noise, late and duplicate responses, loss, timeouts, concurrency, close)
//
// Example usage:
//
//	func TestUDPClient(t *testing.T) {
//		rpctesting.RunClientTests(t, "udp", func(config common.ClientConfig, opts ...client.Option) (*client.Client, error) {
//			return client.Open(config, udp.NewUDPClientTransport(), opts...)
//		})
//	}
//
// The peer is not a server implementation, it exists to exercise the client.
package testing
