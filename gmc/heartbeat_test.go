package gmc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeartbeat_StreamAndStop(t *testing.T) {
	require := require.New(t)

	// HEARTBEAT1 gets no reply; the device then pushes two 2-byte counts.
	port := &fakePort{replies: [][]byte{{0x00, 0x1C, 0x00, 0x1D}}}

	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.Local)
	s := newTestSession(t, port, WithClock(func() time.Time { return fixed }))

	id, readings := s.Subscribe(4)
	defer s.Unsubscribe(id)

	ctx := context.Background()
	require.NoError(s.StartHeartbeat(ctx))
	require.ErrorIs(s.StartHeartbeat(ctx), ErrHeartbeatRunning)

	var got []HeartbeatReading
	for len(got) < 2 {
		select {
		case r := <-readings:
			got = append(got, r)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for heartbeat readings")
		}
	}

	require.Equal(28, got[0].CPS)
	require.Equal(28*60, got[0].CPM)
	require.Equal(fixed, got[0].At)
	require.Equal(29, got[1].CPS)

	require.NoError(s.StopHeartbeat(ctx))
	require.ErrorIs(s.StopHeartbeat(ctx), ErrHeartbeatStopped)

	// Subscriber channels are closed on stop.
	_, open := <-readings
	require.False(open)

	// The mode-off frame went out after the reader stopped.
	require.Equal([]byte("<HEARTBEAT0>>"), port.writes[len(port.writes)-1])
	require.False(s.Conn().Closed())
}

func TestHeartbeat_SlowSubscriberDrops(t *testing.T) {
	require := require.New(t)

	s := newTestSession(t, &fakePort{})

	id, readings := s.Subscribe(1)
	defer s.Unsubscribe(id)

	s.hb.publish(HeartbeatReading{CPS: 1})
	s.hb.publish(HeartbeatReading{CPS: 2})
	s.hb.publish(HeartbeatReading{CPS: 3})

	require.Equal(uint64(2), s.DroppedReadings())

	r := <-readings
	require.Equal(1, r.CPS)
}

func TestHeartbeat_Unsubscribe(t *testing.T) {
	require := require.New(t)

	s := newTestSession(t, &fakePort{})

	id, readings := s.Subscribe(1)
	s.Unsubscribe(id)

	_, open := <-readings
	require.False(open)

	// Publishing after unsubscribe reaches nobody and must not panic.
	s.hb.publish(HeartbeatReading{CPS: 1})
}
