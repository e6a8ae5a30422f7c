// Package frame implements the wire format of the twinkle protocol.
// All functions are pure: no I/O and no shared state.
//
// Request frame (one datagram):
//
//	byte 0       : opcode  (0x01 Ping, 0x02 Get, 0x03 Set, 0x04 Unset)
//	bytes 1..17  : correlation id (16 bytes)
//	bytes 17..19 : key length (uint16, big endian, Get/Set/Unset only)
//	bytes 19..   : key bytes, then value bytes (Set only)
//
// Response frame (one datagram):
//
//	byte 0       : status (0x01 success, 0x02 failure)
//	bytes 1..17  : echoed correlation id
//	bytes 17..   : payload (value for Get, empty otherwise)
//
// The request and the response of one call share the correlation id.
// Request encoding rejects keys longer than 65535 bytes with common.ErrKeyTooLong.
// Response decoding fails with common.ErrTruncated for datagrams shorter than
// 17 bytes and with common.ErrMalformed for an unknown status byte.
package frame
