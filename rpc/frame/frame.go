package frame

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/google/uuid"
)

// Packet is an encoded request frame together with the correlation id it carries
type Packet struct {
	ID    uuid.UUID
	Bytes []byte
}

// Size returns the number of bytes of the frame
func (p Packet) Size() int {
	return len(p.Bytes)
}

// --------------------------------------------------------------------------
// Request frames
// --------------------------------------------------------------------------

// Encode allocates a fresh correlation id from ids and encodes req into a frame bound to it
func Encode(req common.Request, ids IDSource) (Packet, error) {
	id := ids.NewID()
	b, err := EncodeRequest(req, id)
	if err != nil {
		return Packet{}, err
	}
	return Packet{ID: id, Bytes: b}, nil
}

// EncodeRequest writes a request frame with the format:
// - 1 byte: opcode
// - 16 bytes: correlation id
// - 2 bytes: key length (uint16, big endian, Get/Set/Unset only)
// - N bytes: key, followed by the value for Set
func EncodeRequest(req common.Request, id uuid.UUID) ([]byte, error) {
	op := req.Op()
	if !op.HasKey() {
		if op != common.OpPing {
			return nil, fmt.Errorf("cannot encode opcode 0x%02x: %w", uint8(op), common.ErrMalformed)
		}
		b := make([]byte, common.HeaderLen)
		b[0] = byte(op)
		copy(b[1:common.HeaderLen], id[:])
		return b, nil
	}

	key, value := req.Key(), req.Value()
	if len(key) > common.MaxKeyLen {
		return nil, fmt.Errorf("key has %d bytes, at most %d allowed: %w", len(key), common.MaxKeyLen, common.ErrKeyTooLong)
	}

	b := make([]byte, common.HeaderLen+common.KeyLenSize+len(key)+len(value))
	b[0] = byte(op)
	copy(b[1:common.HeaderLen], id[:])

	pos := common.HeaderLen
	binary.BigEndian.PutUint16(b[pos:pos+common.KeyLenSize], uint16(len(key)))
	pos += common.KeyLenSize

	pos += copy(b[pos:], key)
	copy(b[pos:], value)
	return b, nil
}

// DecodeRequest parses a request frame, this is the peer side of EncodeRequest
func DecodeRequest(b []byte) (uuid.UUID, common.Request, error) {
	id, err := decodeHeader(b)
	if err != nil {
		return uuid.Nil, common.Request{}, err
	}

	op := common.Opcode(b[0])
	if op == common.OpPing {
		return id, common.NewPingRequest(), nil
	}
	if !op.HasKey() {
		return uuid.Nil, common.Request{}, fmt.Errorf("unknown opcode 0x%02x: %w", b[0], common.ErrMalformed)
	}

	rest := b[common.HeaderLen:]
	if len(rest) < common.KeyLenSize {
		return uuid.Nil, common.Request{}, fmt.Errorf("missing key length: %w", common.ErrTruncated)
	}
	keyLen := int(binary.BigEndian.Uint16(rest[:common.KeyLenSize]))
	rest = rest[common.KeyLenSize:]
	if len(rest) < keyLen {
		return uuid.Nil, common.Request{}, fmt.Errorf("key needs %d bytes, %d left: %w", keyLen, len(rest), common.ErrTruncated)
	}
	key := rest[:keyLen]

	switch op {
	case common.OpGet:
		return id, common.NewGetRequest(key), nil
	case common.OpUnset:
		return id, common.NewUnsetRequest(key), nil
	default:
		return id, common.NewSetRequest(key, rest[keyLen:]), nil
	}
}

// --------------------------------------------------------------------------
// Response frames
// --------------------------------------------------------------------------

// EncodeResponse writes a response frame with the format:
// - 1 byte: status (0x01 success, 0x02 failure)
// - 16 bytes: echoed correlation id
// - N bytes: payload
func EncodeResponse(id uuid.UUID, ok bool, payload []byte) []byte {
	b := make([]byte, common.HeaderLen+len(payload))
	b[0] = byte(common.StatusFailure)
	if ok {
		b[0] = byte(common.StatusSuccess)
	}
	copy(b[1:common.HeaderLen], id[:])
	copy(b[common.HeaderLen:], payload)
	return b
}

// DecodeResponse parses a response frame into its correlation id and the outcome it carries.
// The payload is copied, b may be reused by the caller afterwards.
func DecodeResponse(b []byte) (uuid.UUID, common.Outcome, error) {
	id, err := decodeHeader(b)
	if err != nil {
		return uuid.Nil, common.Outcome{}, err
	}

	switch common.Status(b[0]) {
	case common.StatusSuccess:
		payload := make([]byte, len(b)-common.HeaderLen)
		copy(payload, b[common.HeaderLen:])
		return id, common.Outcome{Value: payload}, nil
	case common.StatusFailure:
		return id, common.Outcome{Err: common.ErrCommandFailed}, nil
	default:
		return uuid.Nil, common.Outcome{}, fmt.Errorf("unknown response status 0x%02x: %w", b[0], common.ErrMalformed)
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// decodeHeader checks the length of a frame and parses its correlation id
func decodeHeader(b []byte) (uuid.UUID, error) {
	if len(b) < common.HeaderLen {
		return uuid.Nil, fmt.Errorf("got %d bytes, header needs %d: %w", len(b), common.HeaderLen, common.ErrTruncated)
	}
	id, err := uuid.FromBytes(b[1:common.HeaderLen])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%v: %w", err, common.ErrMalformed)
	}
	return id, nil
}
