package gmc

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// HeartbeatReading is one per-second count pushed by the device while
// heartbeat mode is on.
type HeartbeatReading struct {
	// CPS is the raw counts in the last second.
	CPS int
	// CPM is CPS scaled to a counts-per-minute equivalent.
	CPM int
	At  time.Time
}

// heartbeatHub fans readings out to subscribers.
type heartbeatHub struct {
	subs    *xsync.MapOf[uint64, chan HeartbeatReading]
	nextID  atomic.Uint64
	dropped atomic.Uint64

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func (h *heartbeatHub) init() {
	h.subs = xsync.NewMapOf[uint64, chan HeartbeatReading]()
}

func (h *heartbeatHub) publish(r HeartbeatReading) {
	h.subs.Range(func(_ uint64, ch chan HeartbeatReading) bool {
		select {
		case ch <- r:
		default:
			h.dropped.Add(1)
		}
		return true
	})
}

func (h *heartbeatHub) closeAll() {
	h.subs.Range(func(id uint64, ch chan HeartbeatReading) bool {
		h.subs.Delete(id)
		close(ch)
		return true
	})
}

// Subscribe registers a reading channel with the given buffer size and
// returns its id. A reading is dropped for a subscriber whose buffer is
// full; a slow consumer never stalls the reader. The channel is closed
// when the subscriber is removed or the heartbeat stops.
func (s *Session) Subscribe(buffer int) (uint64, <-chan HeartbeatReading) {
	if buffer < 1 {
		buffer = 1
	}

	id := s.hb.nextID.Add(1)
	ch := make(chan HeartbeatReading, buffer)
	s.hb.subs.Store(id, ch)

	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Session) Unsubscribe(id uint64) {
	if ch, ok := s.hb.subs.LoadAndDelete(id); ok {
		close(ch)
	}
}

// DroppedReadings returns how many readings were discarded because a
// subscriber buffer was full.
func (s *Session) DroppedReadings() uint64 { return s.hb.dropped.Load() }

// StartHeartbeat switches the device into heartbeat mode and starts a
// reader goroutine that decodes the pushed 2-byte counts and fans them
// out to subscribers. Other session operations remain usable while the
// heartbeat runs; they interleave with the reader on the connection
// lock.
func (s *Session) StartHeartbeat(ctx context.Context) error {
	if !s.hb.running.CompareAndSwap(false, true) {
		return ErrHeartbeatRunning
	}

	if _, err := s.execute(ctx, CmdHeartbeatOn, nil); err != nil {
		s.hb.running.Store(false)
		return err
	}

	hbCtx, cancel := context.WithCancel(context.Background())
	s.hb.cancel = cancel
	s.hb.done = make(chan struct{})

	go s.readHeartbeats(hbCtx)

	s.logger.Info("heartbeat started")

	return nil
}

// StopHeartbeat stops the reader goroutine, switches heartbeat mode off
// and drains counts pushed in between.
func (s *Session) StopHeartbeat(ctx context.Context) error {
	if !s.hb.running.Load() {
		return ErrHeartbeatStopped
	}

	s.hb.cancel()
	<-s.hb.done

	defer func() {
		s.hb.closeAll()
		s.hb.running.Store(false)
		s.logger.Info("heartbeat stopped")
	}()

	if _, err := s.execute(ctx, CmdHeartbeatOff, nil); err != nil {
		return err
	}

	// The device may have pushed counts between the last read and the
	// mode switch; clear them so the next reply is not polluted.
	if _, err := s.conn.Drain(); err != nil {
		return err
	}

	return nil
}

// readHeartbeats is the reader loop. It takes the connection lock for
// each 2-byte read so foreground commands can interleave between
// readings.
func (s *Session) readHeartbeats(ctx context.Context) {
	defer close(s.hb.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.conn.mu.Lock()
		if s.conn.closed.Load() {
			s.conn.mu.Unlock()
			return
		}

		data, err := s.conn.readExact(CountLen)
		s.conn.mu.Unlock()

		if err != nil {
			s.conn.invalidate(err)
			return
		}

		if len(data) < CountLen {
			// Read window elapsed without a full reading.
			continue
		}

		cpm, err := DecodeCPS(data)
		if err != nil {
			s.conn.metrics.incDecodeErrCount()
			continue
		}

		s.hb.publish(HeartbeatReading{
			CPS: cpm / 60,
			CPM: cpm,
			At:  s.cfg.clock(),
		})
	}
}
