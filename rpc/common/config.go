package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Retry policy
// --------------------------------------------------------------------------

// Default retry constants, see RetryPolicy
const (
	DefaultMaxAttempts = 10
	DefaultPolls       = 5
	DefaultBackoffBase = time.Millisecond

	// MaxPolls is the largest number of polls per attempt Normalize allows
	MaxPolls = 32
	// MaxBackoff caps a single backoff delay
	MaxBackoff = time.Minute
)

// RetryPolicy controls how a call hides datagram loss from the caller.
// Every outer attempt (re)sends the frame and then polls for a result Polls times,
// sleeping Base, 2*Base, 4*Base, ... before each poll.
type RetryPolicy struct {
	// MaxAttempts is the number of outer attempts (sends) of one call
	MaxAttempts int
	// Polls is the number of inner checks per attempt
	Polls int
	// Base is the first backoff delay, doubled after every poll
	Base time.Duration
}

// DefaultRetryPolicy returns the policy used when nothing is configured (10 x 1,2,4,8,16 ms)
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Polls:       DefaultPolls,
		Base:        DefaultBackoffBase,
	}
}

// Normalize replaces unset or invalid fields with the defaults
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Polls < 1 {
		p.Polls = DefaultPolls
	}
	if p.Polls > MaxPolls {
		p.Polls = MaxPolls
	}
	if p.Base <= 0 {
		p.Base = DefaultBackoffBase
	}
	if p.Base > MaxBackoff {
		p.Base = MaxBackoff
	}
	return p
}

// Delay returns the backoff before the i-th poll of an attempt (0-based), at most MaxBackoff
func (p RetryPolicy) Delay(i int) time.Duration {
	if i < 0 {
		i = 0
	}
	if i >= 63 || p.Base > MaxBackoff>>uint(i) {
		return MaxBackoff
	}
	return p.Base << uint(i)
}

// AttemptWindow returns the total time one attempt waits for a result
func (p RetryPolicy) AttemptWindow() time.Duration {
	var d time.Duration
	for i := 0; i < p.Polls; i++ {
		d += p.Delay(i)
	}
	return d
}

// WorstCase returns the total time a call sleeps before it fails with ErrRequestTimeout
func (p RetryPolicy) WorstCase() time.Duration {
	window := p.AttemptWindow()
	if window > 0 && int64(p.MaxAttempts) > math.MaxInt64/int64(window) {
		return math.MaxInt64
	}
	return time.Duration(p.MaxAttempts) * window
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// SocketConf holds os level socket settings, zero values keep the os defaults
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// ClientConfig holds everything needed to open a client to one peer
type ClientConfig struct {
	// Endpoint is the address of the peer (host:port)
	Endpoint string

	// MaxFrameSize caps the size of an encoded request, 0 means MaxFrameSize
	MaxFrameSize int

	// Retry controls the retry/backoff loop of every call
	Retry RetryPolicy

	// Socket holds the socket buffer sizes
	Socket SocketConf

	// Logging configuration
	LogLevel string
}

// FrameLimit returns the effective frame size limit
func (c *ClientConfig) FrameLimit() int {
	if c.MaxFrameSize <= 0 || c.MaxFrameSize > MaxFrameSize {
		return MaxFrameSize
	}
	return c.MaxFrameSize
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	retry := c.Retry.Normalize()

	// General Client Settings
	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Max Frame Size", fmt.Sprintf("%d bytes", c.FrameLimit()))

	// Retry policy
	addSection("Retry Policy")
	addField("Attempts", strconv.Itoa(retry.MaxAttempts))
	addField("Polls Per Attempt", strconv.Itoa(retry.Polls))
	addField("Backoff Base", retry.Base.String())
	addField("Worst Case", retry.WorstCase().String())

	// Socket
	addSection("Socket")
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Socket.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Socket.ReadBufferSize))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
