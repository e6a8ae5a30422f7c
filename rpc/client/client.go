package client

import (
	"fmt"
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/ValentinKolb/twinkle/rpc/frame"
	"github.com/ValentinKolb/twinkle/rpc/transport"
	"time"
)

// Client is the public call surface of the twinkle protocol.
// It is safe for concurrent use, every call runs its own retry loop on the shared transport.
type Client struct {
	config    common.ClientConfig
	policy    common.RetryPolicy
	transport transport.IClientTransport
	ids       frame.IDSource
}

// Option customizes a Client
type Option func(*Client)

// WithIDSource replaces the source of correlation ids (default frame.RandomIDs)
func WithIDSource(ids frame.IDSource) Option {
	return func(c *Client) {
		c.ids = ids
	}
}

// Open connects the transport and returns a client using it.
// The transport loops are not started yet, call Run (usually in its own goroutine).
func Open(config common.ClientConfig, transport transport.IClientTransport, opts ...Option) (*Client, error) {
	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	c := &Client{
		config:    config,
		policy:    config.Retry.Normalize(),
		transport: transport,
		ids:       frame.RandomIDs,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run runs the dispatcher and listener of the transport until Close is called
// or the socket fails, in which case the error is returned
func (c *Client) Run() error {
	return c.transport.Run()
}

// Close stops the transport, calls issued afterwards fail with common.ErrTransportClosed
func (c *Client) Close() error {
	return c.transport.Close()
}

// Policy returns the effective retry policy
func (c *Client) Policy() common.RetryPolicy {
	return c.policy
}

// --------------------------------------------------------------------------
// Calls
// --------------------------------------------------------------------------

// Ping checks that the peer answers
func (c *Client) Ping() error {
	_, err := c.Do(common.NewPingRequest())
	return err
}

// Get reads the value of key, a missing key results in common.ErrCommandFailed
func (c *Client) Get(key []byte) ([]byte, error) {
	return c.Do(common.NewGetRequest(key))
}

// Set writes value under key.
// A retried Set may be executed more than once by the peer.
func (c *Client) Set(key, value []byte) error {
	_, err := c.Do(common.NewSetRequest(key, value))
	return err
}

// Unset removes key
func (c *Client) Unset(key []byte) error {
	_, err := c.Do(common.NewUnsetRequest(key))
	return err
}

// Do sends req and returns the payload of the response.
// The request is encoded once, all retries share its correlation id.
func (c *Client) Do(req common.Request) ([]byte, error) {
	start := time.Now()
	defer func() {
		callDuration(req.Op()).UpdateDuration(start)
	}()

	p, err := frame.Encode(req, c.ids)
	if err != nil {
		return nil, err
	}
	if limit := c.config.FrameLimit(); p.Size() > limit {
		return nil, fmt.Errorf("%s needs %d bytes, limit is %d: %w", req.Op(), p.Size(), limit, common.ErrFrameTooLarge)
	}

	return invokeRequest(c.transport, p, c.policy)
}
