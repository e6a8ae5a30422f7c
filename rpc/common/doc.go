// Package common provides the protocol model and utilities shared across
// the twinkle client. It defines the request type, the wire constants,
// the error taxonomy, configuration structures and logging.
//
// Key Components:
//
//   - Request: immutable command sent to the peer (Ping, Get, Set, Unset).
//     Created with the NewXRequest factory functions.
//
//   - Opcode / Status: first byte of request and response frames.
//
//   - Errors: sentinel errors for validation (ErrKeyTooLong, ErrFrameTooLarge),
//     frame decoding (ErrTruncated, ErrMalformed), peer failures
//     (ErrCommandFailed) and retry exhaustion (ErrRequestTimeout).
//     Callers match them with errors.Is.
//
//   - RetryPolicy: the one retry/backoff policy shared by all call types.
//
//   - ClientConfig: endpoint, frame limit, retry policy and socket settings.
//
//   - Logger: custom logging implementation that plugs into Dragonboat's
//     logger registry so every package logs with the same format.
package common
