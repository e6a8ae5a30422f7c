package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Protocol Limits
// --------------------------------------------------------------------------

const (
	// IDLen is the length of the correlation id carried by every frame
	IDLen = 16

	// HeaderLen is the length of the common frame header (opcode + correlation id)
	HeaderLen = 1 + IDLen

	// KeyLenSize is the size of the big endian key length prefix of keyed requests
	KeyLenSize = 2

	// MaxKeyLen is the largest key that fits into the key length prefix
	MaxKeyLen = 0xFFFF

	// MaxFrameSize is the largest frame the client sends, the UDP payload limit over IPv4
	// (65535 - 20 byte IP header - 8 byte UDP header)
	MaxFrameSize = 65507

	// MaxDatagramSize is the size of the receive buffers, large enough for any datagram
	MaxDatagramSize = 0xFFFF
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrKeyTooLong is returned before any I/O if a key does not fit into the length prefix
	ErrKeyTooLong = errors.New("key too long")
	// ErrFrameTooLarge is returned before any I/O if the encoded frame exceeds the datagram limit
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrTruncated is returned by the frame decoder for datagrams shorter than the header
	ErrTruncated = errors.New("frame truncated")
	// ErrMalformed is returned by the frame decoder for frames with an invalid header
	ErrMalformed = errors.New("frame malformed")
	// ErrCommandFailed is the result of a call the peer answered with the failure status
	ErrCommandFailed = errors.New("command failed")
	// ErrRequestTimeout is returned once all retry attempts of a call are exhausted
	ErrRequestTimeout = errors.New("request timeout")
	// ErrTransportClosed is returned for calls issued after the transport stopped
	ErrTransportClosed = errors.New("transport closed")
)

// --------------------------------------------------------------------------
// Request Structure
// --------------------------------------------------------------------------

// Request is a single command sent to the peer.
// Which fields are used depends on the opcode, a request is never modified after construction.
type Request struct {
	op    Opcode
	key   []byte // Used for: Get, Set, Unset
	value []byte // Used for: Set
}

// Op returns the opcode of the request
func (r Request) Op() Opcode { return r.op }

// Key returns the key of the request (nil for Ping)
func (r Request) Key() []byte { return r.key }

// Value returns the value of the request (nil for everything but Set)
func (r Request) Value() []byte { return r.value }

// String returns a short human-readable form of the request
func (r Request) String() string {
	switch r.op {
	case OpPing:
		return r.op.String()
	case OpSet:
		return fmt.Sprintf("%s(%q, %d bytes)", r.op, r.key, len(r.value))
	default:
		return fmt.Sprintf("%s(%q)", r.op, r.key)
	}
}

// --------------------------------------------------------------------------
// Request Factory Functions
// --------------------------------------------------------------------------

// NewPingRequest creates a new Ping request
func NewPingRequest() Request {
	return Request{op: OpPing}
}

// NewGetRequest creates a new Get request
func NewGetRequest(key []byte) Request {
	return Request{op: OpGet, key: clone(key)}
}

// NewSetRequest creates a new Set request
func NewSetRequest(key, value []byte) Request {
	return Request{op: OpSet, key: clone(key), value: clone(value)}
}

// NewUnsetRequest creates a new Unset request
func NewUnsetRequest(key []byte) Request {
	return Request{op: OpUnset, key: clone(key)}
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return append(make([]byte, 0, len(b)), b...)
}

// --------------------------------------------------------------------------
// Opcode Definition
// --------------------------------------------------------------------------

// Opcode is the first byte of a request frame.
type Opcode uint8

const (
	OpPing  Opcode = 0x01 // Liveness check
	OpGet   Opcode = 0x02 // Read a value by key
	OpSet   Opcode = 0x03 // Write a key-value pair
	OpUnset Opcode = 0x04 // Remove a key
)

// HasKey reports whether frames with this opcode carry a key length prefix
func (o Opcode) HasKey() bool {
	return o == OpGet || o == OpSet || o == OpUnset
}

// String returns the string representation of an Opcode.
func (o Opcode) String() string {
	switch o {
	case OpPing:
		return "ping"
	case OpGet:
		return "get"
	case OpSet:
		return "set"
	case OpUnset:
		return "unset"
	default:
		return "unknown"
	}
}

// Status is the first byte of a response frame.
type Status uint8

const (
	StatusSuccess Status = 0x01
	StatusFailure Status = 0x02
)

// --------------------------------------------------------------------------
// Outcome
// --------------------------------------------------------------------------

// Outcome is the result of one call as decoded from a response frame.
// Exactly one of Value (possibly empty) and Err is meaningful.
type Outcome struct {
	Value []byte
	Err   error
}
