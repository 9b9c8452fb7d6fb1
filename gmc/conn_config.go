package gmc

import (
	"errors"
	"fmt"
	"time"

	"github.com/gmcdev/go-gmc/logger"
)

// Default connection settings.
const (
	DefaultBaudRate       = 57600
	DefaultReadTimeout    = 3 * time.Second
	DefaultTurnaroundWait = 30 * time.Millisecond
	DefaultAttemptLimit   = 5
)

// Fixed retry pacing of the short-read recovery loop.
const (
	// RetryWait is the pause before re-writing the frame on a retry.
	RetryWait = 1 * time.Second
	// RetryTurnaroundWait is the pause between the re-write and the re-read.
	RetryTurnaroundWait = 300 * time.Millisecond
)

// Limits for configurable values.
const (
	MinReadTimeout = 100 * time.Millisecond
	MaxReadTimeout = 120 * time.Second

	MaxTurnaroundWait = 1 * time.Second

	MaxAttemptLimit = 10
)

// SupportedBaudRates lists the serial speeds the device firmware offers,
// matching the baud-rate codes of the configuration block.
var SupportedBaudRates = []int{
	1200, 2400, 4800, 9600, 14400, 19200, 28800, 38400, 57600, 115200,
}

// ConnectionConfig holds all configuration for a device connection.
type ConnectionConfig struct {
	port     string
	baudRate int

	// readTimeout is the port-level timeout for one read of the expected
	// reply length.
	readTimeout time.Duration

	// turnaroundWait is the delay between writing a frame and reading the
	// reply, accommodating device turnaround latency. This is a protocol
	// timing requirement, not incidental.
	turnaroundWait time.Duration

	// attemptLimit is the total number of attempts for one exchange;
	// the first short read counts as attempt 1.
	attemptLimit int

	profile Profile
	clock   func() time.Time
	logger  logger.Logger
}

// NewConnectionConfig creates a connection configuration for the serial
// port identified by port (e.g. "/dev/ttyUSB0" or "COM3").
//
// opts are functional options applied in order; see With* functions.
func NewConnectionConfig(port string, opts ...ConnOption) (*ConnectionConfig, error) {
	if port == "" {
		return nil, errors.New("gmc: port name is empty")
	}

	cfg := &ConnectionConfig{
		port:           port,
		baudRate:       DefaultBaudRate,
		readTimeout:    DefaultReadTimeout,
		turnaroundWait: DefaultTurnaroundWait,
		attemptLimit:   DefaultAttemptLimit,
		profile:        DefaultProfile(),
		clock:          time.Now,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// Port returns the configured serial port name.
func (cfg *ConnectionConfig) Port() string { return cfg.port }

// BaudRate returns the configured serial speed.
func (cfg *ConnectionConfig) BaudRate() int { return cfg.baudRate }

// ReadTimeout returns the port-level read timeout.
func (cfg *ConnectionConfig) ReadTimeout() time.Duration { return cfg.readTimeout }

// TurnaroundWait returns the write-to-read delay.
func (cfg *ConnectionConfig) TurnaroundWait() time.Duration { return cfg.turnaroundWait }

// AttemptLimit returns the total number of attempts for one exchange.
func (cfg *ConnectionConfig) AttemptLimit() int { return cfg.attemptLimit }

// Profile returns the device profile.
func (cfg *ConnectionConfig) Profile() Profile { return cfg.profile }

// Clock returns the time source used for SETDATETIME.
func (cfg *ConnectionConfig) Clock() func() time.Time { return cfg.clock }

// GetLogger returns the configured logger.
func (cfg *ConnectionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- ConnOption ---

// ConnOption is a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc func(*ConnectionConfig) error

func (f connOptFunc) apply(cfg *ConnectionConfig) error { return f(cfg) }

// WithBaudRate sets the serial speed. It must be one of SupportedBaudRates.
func WithBaudRate(baud int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		for _, b := range SupportedBaudRates {
			if b == baud {
				cfg.baudRate = baud
				return nil
			}
		}
		return fmt.Errorf("gmc: baud rate %d not supported by device", baud)
	})
}

// WithReadTimeout sets the port-level read timeout.
func WithReadTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < MinReadTimeout || d > MaxReadTimeout {
			return fmt.Errorf("gmc: read timeout %v out of range [%v, %v]", d, MinReadTimeout, MaxReadTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithTurnaroundWait sets the delay inserted between writing a frame and
// reading the reply.
func WithTurnaroundWait(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < 0 || d > MaxTurnaroundWait {
			return fmt.Errorf("gmc: turnaround wait %v out of range [0, %v]", d, MaxTurnaroundWait)
		}
		cfg.turnaroundWait = d

		return nil
	})
}

// WithAttemptLimit sets the total number of attempts for one exchange,
// including the first one.
func WithAttemptLimit(n int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if n < 1 || n > MaxAttemptLimit {
			return fmt.Errorf("gmc: attempt limit %d out of range [1, %d]", n, MaxAttemptLimit)
		}
		cfg.attemptLimit = n

		return nil
	})
}

// WithProfile sets the device profile consulted for per-model quirks.
func WithProfile(p Profile) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if p.Model == "" {
			return errors.New("gmc: profile has no model")
		}
		cfg.profile = p

		return nil
	})
}

// WithModel sets the device profile by model name.
func WithModel(m Model) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		p, ok := ProfileFor(m)
		if !ok {
			return fmt.Errorf("gmc: unknown model %q", m)
		}
		cfg.profile = p

		return nil
	})
}

// WithClock sets the time source used when writing the device clock.
func WithClock(now func() time.Time) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if now == nil {
			return errors.New("gmc: clock must not be nil")
		}
		cfg.clock = now

		return nil
	})
}

// WithLogger sets the logger for the connection.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("gmc: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
