package gmc

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/gmcdev/go-gmc/logger"
)

// Port is the narrow serial-port surface the connection needs.
// It is satisfied by go.bug.st/serial.Port; tests substitute scripted fakes.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// drainReadTimeout is the per-byte silence timeout used when draining
// stray bytes from the line.
const drainReadTimeout = 100 * time.Millisecond

// Conn owns one open serial connection to the device and runs the
// half-duplex exchange engine on it.
//
// All exchanges are serialized internally; interleaved writes and reads
// from concurrent callers would corrupt the framing. An I/O failure on
// write or read invalidates the connection: the port is closed and every
// subsequent operation fails fast with ErrConnClosed.
type Conn struct {
	cfg    *ConnectionConfig
	logger logger.Logger
	port   Port

	// mu serializes the whole execute-and-retry sequence.
	mu     sync.Mutex
	closed atomic.Bool

	metrics SessionMetrics
}

// NewConn wraps an already-open port. Most callers use Open instead.
func NewConn(cfg *ConnectionConfig, port Port) (*Conn, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if port == nil {
		return nil, ErrPortNil
	}

	return &Conn{
		cfg:    cfg,
		logger: cfg.logger.With("port", cfg.port),
		port:   port,
	}, nil
}

// Open opens the configured serial port (8N1 framing) and returns a
// connection over it.
//
// Opening succeeds even when no device is listening or the baud rate is
// wrong; use Session.Verify to confirm communication.
func Open(cfg *ConnectionConfig) (*Conn, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	mode := &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.port, mode)
	if err != nil {
		return nil, fmt.Errorf("gmc: open port %s at %d baud: %w", cfg.port, cfg.baudRate, err)
	}

	if err := port.SetReadTimeout(cfg.readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("gmc: set read timeout on %s: %w", cfg.port, err)
	}

	return NewConn(cfg, port)
}

// Config returns the connection configuration.
func (c *Conn) Config() *ConnectionConfig { return c.cfg }

// Metrics returns the connection metrics.
func (c *Conn) Metrics() *SessionMetrics { return &c.metrics }

// Closed reports whether the connection has been closed or invalidated.
func (c *Conn) Closed() bool { return c.closed.Load() }

// Close closes the serial port. It is idempotent.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	return c.port.Close()
}

// invalidate closes the port after an I/O failure so that subsequent
// operations fail fast instead of hanging on a broken line.
func (c *Conn) invalidate(cause error) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	c.logger.Error("connection invalidated", "cause", cause)
	_ = c.port.Close()
}

// write writes the whole frame to the port.
func (c *Conn) write(frame []byte) error {
	for written := 0; written < len(frame); {
		n, err := c.port.Write(frame[written:])
		written += n

		if err != nil {
			return fmt.Errorf("gmc: write frame: %w", err)
		}
	}

	c.metrics.addBytesWritten(len(frame))

	return nil
}

// readExact reads up to n bytes within the port read timeout.
//
// A timeout is not an error here: the bytes received so far are returned
// and the caller classifies the short read. A non-nil error means a real
// I/O failure.
func (c *Conn) readExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	total := 0

	for total < n {
		m, err := c.port.Read(buf[total:])
		total += m

		if err != nil {
			return buf[:total], fmt.Errorf("gmc: read reply: %w", err)
		}
		if m == 0 {
			// Read timeout expired with no further data.
			break
		}
	}

	c.metrics.addBytesRead(total)

	return buf[:total], nil
}

// Drain reads and discards stray bytes until the line is silent,
// returning whatever was collected. Some firmware (at least the 500
// series) leaves extra bytes in the pipeline after certain commands;
// draining before a framed exchange avoids misaligned replies.
func (c *Conn) Drain() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil, ErrConnClosed
	}

	if err := c.port.SetReadTimeout(drainReadTimeout); err != nil {
		return nil, fmt.Errorf("gmc: set drain timeout: %w", err)
	}
	defer func() {
		_ = c.port.SetReadTimeout(c.cfg.readTimeout)
	}()

	var extra []byte
	one := make([]byte, 1)

	for {
		m, err := c.port.Read(one)
		if m > 0 {
			extra = append(extra, one[0])
		}
		if err != nil {
			c.invalidate(err)
			return extra, fmt.Errorf("gmc: drain: %w", err)
		}
		if m == 0 {
			break
		}
	}

	if len(extra) > 0 {
		c.logger.Debug("drained stray bytes from pipeline", "count", len(extra))
	}

	return extra, nil
}
