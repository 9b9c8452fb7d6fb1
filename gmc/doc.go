// Package gmc implements the GQ GMC Geiger counter serial protocol
// (GQ-RFC1201): ASCII-framed binary commands over a half-duplex serial
// link with fixed-length replies.
//
// The package is organized in layers:
//
//   - Conn owns the serial port and provides the retrying
//     request/response exchange engine.
//   - CommandSpec describes each device operation (frame template and
//     expected reply length).
//   - Decode functions turn raw reply payloads into typed values.
//   - DeviceConfig interprets the 256-byte configuration block.
//   - Session composes the above into one typed method per device
//     operation.
//
// Per-hardware-variant protocol quirks (flash read length encoding,
// calibration float byte order) are captured once in a Profile and
// consulted wherever they matter; no code path branches on model names.
//
// The protocol is strictly half-duplex: one exchange at a time. Session
// and Conn serialize all exchanges internally, so they are safe for
// concurrent use, but calls block for the whole exchange including the
// bounded retry loop (worst case roughly 5 seconds plus the port read
// timeout).
package gmc
