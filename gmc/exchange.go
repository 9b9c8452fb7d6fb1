package gmc

import (
	"context"
	"fmt"

	"github.com/gmcdev/go-gmc/internal/pool"
)

// Outcome classifies the result of one command exchange.
type Outcome uint8

const (
	// OutcomeOK means the full reply was received on the first attempt.
	OutcomeOK Outcome = iota

	// OutcomeWarning means the reply was shorter than expected at first
	// but the exchange recovered within the retry budget. The operation
	// succeeded; Reply.Retries records the recovery cost.
	OutcomeWarning

	// OutcomeFatal means the exchange failed: an I/O error on write or
	// read (connection invalidated), or the retry budget was exhausted
	// on short reads (connection stays open).
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeWarning:
		return "warning"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Reply is the transient result of one command exchange.
//
// Data holds the full reply payload when Succeeded reports true, and is
// nil on a fatal outcome: the engine never hands out partial data.
type Reply struct {
	// Command is the operation this reply belongs to.
	Command Command
	// Data is the raw reply payload.
	Data []byte
	// Outcome classifies the exchange.
	Outcome Outcome
	// Retries is the number of retries needed to recover a short read.
	Retries int
	// Message is the diagnostic for non-OK outcomes.
	Message string
}

// Succeeded reports whether the payload is complete and safe to decode.
func (r *Reply) Succeeded() bool {
	return r.Outcome != OutcomeFatal
}

// Execute runs one command exchange: build the frame, write it, read the
// expected reply length, and recover short reads with a bounded retry
// loop.
//
// The returned error is non-nil exactly when the outcome is Fatal; the
// Reply always carries the outcome classification and diagnostic.
// Commands with a zero expected reply length are fire-and-forget: the
// read step is skipped entirely and the outcome is always OK.
//
// Execute blocks any concurrent exchange on the same connection until it
// finishes, including the retry loop.
func (c *Conn) Execute(ctx context.Context, spec CommandSpec, args []byte) (*Reply, error) {
	frame := BuildFrame(spec.Name, args)

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.exchange(ctx, spec, frame)
}

// exchange runs the retry state machine. The caller holds c.mu.
func (c *Conn) exchange(ctx context.Context, spec CommandSpec, frame []byte) (*Reply, error) {
	reply := &Reply{Command: spec.Name, Outcome: OutcomeFatal}
	c.metrics.incCommandCount()

	if c.closed.Load() {
		return c.fatal(reply, ErrConnClosed)
	}

	// Device turnaround latency: going too fast causes occasional
	// failures even on healthy units.
	if err := pool.Sleep(ctx, c.cfg.turnaroundWait); err != nil {
		return c.fatal(reply, fmt.Errorf("gmc: %s: %w", spec.Name, err))
	}

	if err := c.write(frame); err != nil {
		c.invalidate(err)
		return c.fatal(reply, fmt.Errorf("gmc: %s: %w", spec.Name, err))
	}

	if spec.ReplyLen == 0 {
		reply.Outcome = OutcomeOK
		reply.Data = []byte{}

		return reply, nil
	}

	// The device needs the same breather again before it starts
	// answering; reading right after the write races its reply setup.
	if err := pool.Sleep(ctx, c.cfg.turnaroundWait); err != nil {
		return c.fatal(reply, fmt.Errorf("gmc: %s: %w", spec.Name, err))
	}

	data, err := c.readExact(spec.ReplyLen)
	if err != nil {
		c.invalidate(err)
		return c.fatal(reply, fmt.Errorf("gmc: %s: %w", spec.Name, err))
	}

	if len(data) == spec.ReplyLen {
		reply.Outcome = OutcomeOK
		reply.Data = data

		return reply, nil
	}

	return c.recoverShortRead(ctx, spec, frame, reply, len(data))
}

// recoverShortRead re-writes the frame and re-reads the reply until the
// full length arrives or the attempt budget runs out. The first short
// read counts as attempt 1.
func (c *Conn) recoverShortRead(ctx context.Context, spec CommandSpec, frame []byte, reply *Reply, got int) (*Reply, error) {
	c.metrics.incShortReadCount()
	c.logger.Warn("short reply, retrying",
		"command", spec.Name, "received", got, "expected", spec.ReplyLen)

	for attempt := 2; attempt <= c.cfg.attemptLimit; attempt++ {
		c.metrics.incRetryCount()

		if err := pool.Sleep(ctx, RetryWait); err != nil {
			return c.fatal(reply, fmt.Errorf("gmc: %s: %w", spec.Name, err))
		}

		if err := c.write(frame); err != nil {
			c.invalidate(err)
			return c.fatal(reply, fmt.Errorf("gmc: %s: %w", spec.Name, err))
		}

		if err := pool.Sleep(ctx, RetryTurnaroundWait); err != nil {
			return c.fatal(reply, fmt.Errorf("gmc: %s: %w", spec.Name, err))
		}

		data, err := c.readExact(spec.ReplyLen)
		if err != nil {
			c.invalidate(err)
			return c.fatal(reply, fmt.Errorf("gmc: %s: %w", spec.Name, err))
		}

		if len(data) == spec.ReplyLen {
			reply.Outcome = OutcomeWarning
			reply.Data = data
			reply.Retries = attempt - 1
			reply.Message = fmt.Sprintf("short reply recovered after %d retries", reply.Retries)

			c.metrics.incRecoveredCount()
			c.logger.Info("short reply recovered",
				"command", spec.Name, "retries", reply.Retries)

			return reply, nil
		}

		c.logger.Warn("short reply persists",
			"command", spec.Name, "attempt", attempt, "received", len(data), "expected", spec.ReplyLen)
	}

	// Retry budget exhausted. Partial data is discarded, and unlike I/O
	// failures this does not close the port.
	err := fmt.Errorf("gmc: %s: %w after %d attempts (is the baud rate correct?)",
		spec.Name, ErrShortReply, c.cfg.attemptLimit)

	return c.fatal(reply, err)
}

// fatal finalizes a failed exchange: outcome Fatal, no payload.
func (c *Conn) fatal(reply *Reply, err error) (*Reply, error) {
	reply.Outcome = OutcomeFatal
	reply.Data = nil
	reply.Message = err.Error()

	c.metrics.incFatalCount()
	c.logger.Error("exchange failed", "command", reply.Command, "error", err)

	return reply, err
}
