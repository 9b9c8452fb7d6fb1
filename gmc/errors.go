package gmc

import (
	"errors"
	"fmt"
)

var (
	// ErrConnClosed indicates that the connection has been closed or
	// invalidated by an earlier I/O failure. All operations on a closed
	// connection fail immediately with this error.
	ErrConnClosed = errors.New("gmc: connection closed")

	// ErrShortReply indicates that the device kept returning fewer bytes
	// than the command guarantees and the retry budget was exhausted.
	// The connection itself stays open; only I/O failures close it.
	ErrShortReply = errors.New("gmc: reply shorter than expected, retries exhausted")

	// ErrConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConfigNil = errors.New("gmc: connection config is nil")

	// ErrPortNil indicates that a nil serial port was provided.
	ErrPortNil = errors.New("gmc: serial port is nil")
)

var (
	// ErrFlashAddrRange indicates a flash read address beyond the 3-byte
	// address field of the SPIR command.
	ErrFlashAddrRange = errors.New("gmc: flash address out of range")

	// ErrFlashLenRange indicates a flash read length outside the 2-byte
	// length field of the SPIR command.
	ErrFlashLenRange = errors.New("gmc: flash read length out of range")

	// ErrOffsetRange indicates a configuration offset outside the
	// 256-byte configuration block.
	ErrOffsetRange = errors.New("gmc: config offset out of range")

	// ErrYearRange indicates a year that cannot be encoded in the
	// device's single-byte year-since-2000 field.
	ErrYearRange = errors.New("gmc: year not encodable as device date-time")
)

var (
	// ErrHeartbeatRunning indicates that heartbeat streaming is already active.
	ErrHeartbeatRunning = errors.New("gmc: heartbeat already running")

	// ErrHeartbeatStopped indicates that heartbeat streaming is not active.
	ErrHeartbeatStopped = errors.New("gmc: heartbeat not running")
)

// DecodeError reports a reply that arrived with the correct length but
// whose payload is semantically invalid (impossible calendar date,
// fractional temperature digit outside 0-9, unknown baud rate code, ...).
//
// Decode errors are never retried: resending the command cannot fix a
// semantic problem in well-framed data.
type DecodeError struct {
	// Op is the device operation whose reply failed to decode, e.g. "GETTEMP".
	Op string
	// Reason describes the anomaly in human-readable form.
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("gmc: %s: %s", e.Op, e.Reason)
}

// IsDecodeError reports whether err is (or wraps) a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func decodeErrorf(op string, format string, args ...any) *DecodeError {
	return &DecodeError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
