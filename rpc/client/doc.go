// Package client implements the public call surface of the twinkle protocol:
// Ping, Get, Set and Unset over an unreliable datagram transport.
//
// Every call is encoded once, which fixes its correlation id, and then sent up
// to RetryPolicy.MaxAttempts times. After each send the call polls its waiter
// RetryPolicy.Polls times with exponential backoff (1, 2, 4, 8, 16 ms by default).
// All attempts share the id, so a late response to an earlier attempt completes
// the call as well. A call that gets no response fails with common.ErrRequestTimeout
// after at most RetryPolicy.WorstCase() of sleeping (310 ms by default).
//
// Usage Example:
//
//	config := common.ClientConfig{Endpoint: "127.0.0.1:3000"}
//
//	c, err := client.Open(config, udp.NewUDPClientTransport())
//	if err != nil {
//	  return err
//	}
//	defer c.Close()
//	go c.Run()
//
//	c.Set([]byte("hoge"), []byte("foo"))
//	value, err := c.Get([]byte("hoge"))
//	if errors.Is(err, common.ErrCommandFailed) {
//	  // key not found
//	}
//
// Thread Safety:
//
//	A Client is safe for concurrent use from multiple goroutines.
//	Calls never block the transport loops, backoff happens in the calling goroutine.
package client
