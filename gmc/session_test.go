package gmc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testConfigBlock builds a plausible GETCFG payload: device on, alarm
// off, speaker on, CPS history saving, 57600 baud, rest erased.
func testConfigBlock() []byte {
	raw := make([]byte, ConfigSize)
	for i := range raw {
		raw[i] = emptyByte
	}
	raw[OffsetPower] = 0
	raw[OffsetAlarm] = 0
	raw[OffsetSpeaker] = 1
	raw[OffsetSaveDataType] = 1
	raw[OffsetBaudRate] = 252
	return raw
}

func newTestSession(t *testing.T, port *fakePort, opts ...ConnOption) *Session {
	t.Helper()
	return NewSession(newTestConn(t, port, opts...))
}

func TestSession_Version(t *testing.T) {
	require := require.New(t)

	port := &fakePort{replies: [][]byte{[]byte("GMC-320Re 4.19")}}
	s := newTestSession(t, port)

	ver, err := s.Version(context.Background())
	require.NoError(err)
	require.Equal("GMC-320Re 4.19", ver)
	require.Equal([]byte("<GETVER>>"), port.writes[0])
}

func TestSession_Counts(t *testing.T) {
	require := require.New(t)

	port := &fakePort{replies: [][]byte{
		{0x0B, 0xEA},
		{0x80, 0x1C},
	}}
	s := newTestSession(t, port)

	cpm, err := s.CPM(context.Background())
	require.NoError(err)
	require.Equal(uint16(3050), cpm)

	cps, err := s.CPS(context.Background())
	require.NoError(err)
	require.Equal(1680, cps)
}

func TestSession_DecodeErrorCounted(t *testing.T) {
	require := require.New(t)

	// Correct length, impossible fractional digit.
	port := &fakePort{replies: [][]byte{{23, 10, 0, 0xAA}}}
	s := newTestSession(t, port)

	_, err := s.Temperature(context.Background())
	require.True(IsDecodeError(err))
	require.Equal(uint64(1), s.Metrics().DecodeErrCount.Load())

	// A decode error does not close the connection.
	require.False(s.Conn().Closed())
}

func TestSession_DateTime(t *testing.T) {
	require := require.New(t)

	port := &fakePort{replies: [][]byte{
		{17, 12, 31, 14, 3, 19, 0xAA},
		{0xAA},
	}}

	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.Local)
	s := newTestSession(t, port, WithClock(func() time.Time { return fixed }))

	dt, err := s.DateTime(context.Background())
	require.NoError(err)
	require.Equal(time.Date(2017, 12, 31, 14, 3, 19, 0, time.Local), dt)

	require.NoError(s.SyncDateTime(context.Background()))
	frame := port.writes[1]
	require.Equal(append(append([]byte("<SETDATETIME"), 26, 8, 30, 12, 0, 0), ">>"...), frame)
}

func TestSession_Verify(t *testing.T) {
	require := require.New(t)

	port := &fakePort{replies: [][]byte{testConfigBlock()}}
	s := newTestSession(t, port)

	require.Equal(SwitchUnknown, s.PowerState())

	cfg, err := s.Verify(context.Background())
	require.NoError(err)
	require.Equal(SwitchOn, cfg.PowerState())
	require.Equal(SwitchOn, s.PowerState())
	require.Equal(SwitchOn, cfg.SpeakerState())
	require.Equal(SaveModeCPS, cfg.SaveMode())
}

func TestSession_ReadFlash(t *testing.T) {
	require := require.New(t)

	page := []byte{0x55, 0xAA, 0x00, 0x01}
	port := &fakePort{replies: [][]byte{page}}
	s := newTestSession(t, port)

	data, err := s.ReadFlash(context.Background(), 0x000100, 4)
	require.NoError(err)
	require.Equal(page, data)

	// 3-byte address, length minus one for the default profile.
	require.Equal(append(append([]byte("<SPIR"), 0x00, 0x01, 0x00, 0x00, 0x03), ">>"...), port.writes[0])

	_, err = s.ReadFlash(context.Background(), 1<<24, 4)
	require.ErrorIs(err, ErrFlashAddrRange)
}

func TestSession_WriteConfigByte(t *testing.T) {
	require := require.New(t)

	block := testConfigBlock()

	// Plan covers bytes 0..OffsetBaudRate; every WCFG and the final
	// CFGUPDATE are acknowledged.
	planLen := OffsetBaudRate + 1
	replies := [][]byte{block, {0xAA}}
	for i := 0; i < planLen; i++ {
		replies = append(replies, []byte{0xAA})
	}
	replies = append(replies, []byte{0xAA})

	port := &fakePort{replies: replies}
	s := newTestSession(t, port)

	require.NoError(s.WriteConfigByte(context.Background(), OffsetSpeaker, 0))

	require.Len(port.writes, 3+planLen)
	require.Equal([]byte("<GETCFG>>"), port.writes[0])
	require.Equal([]byte("<ECFG>>"), port.writes[1])
	require.Equal(append(append([]byte("<WCFG"), 0x00, 0x00), ">>"...), port.writes[2])
	require.Equal(append(append([]byte("<WCFG"), byte(OffsetSpeaker), 0x00), ">>"...), port.writes[2+OffsetSpeaker])
	require.Equal([]byte("<CFGUPDATE>>"), port.writes[len(port.writes)-1])
}

func TestSession_DeviceInfo(t *testing.T) {
	require := require.New(t)

	port := &fakePort{replies: [][]byte{
		testConfigBlock(),
		[]byte("GMC-320Re 4.19"),
		{0xF4, 0x88, 0x00, 0x7E, 0x05, 0x12, 0x34},
		{17, 12, 31, 14, 3, 19, 0xAA},
		{0x3E},
		{23, 10, 0, 0xAA}, // bad fractional digit
		{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0xAA},
	}}

	fixed := time.Date(2017, 12, 31, 14, 3, 9, 0, time.Local)
	s := newTestSession(t, port, WithClock(func() time.Time { return fixed }))

	info, err := s.DeviceInfo(context.Background())
	require.NoError(err)

	require.Equal(ModelGMC300EPlus, info.Model)
	require.Equal("GMC-320Re 4.19", info.Version)
	require.Equal("F488007E051234", info.SerialNumber)
	require.Equal(10*time.Second, info.ClockDelta)
	require.InDelta(6.2, info.Voltage, 1e-9)
	require.Equal(Gyro{X: 0x0102, Y: 0x0304, Z: 0x0506}, info.Gyro)
	require.Equal(SwitchOn, info.Power)
	require.Equal(SaveModeCPS, info.SaveMode)
	require.Equal(57600, info.BaudRate)
	require.Equal(uint16(MaxCPMInvalid), info.MaxCPM)

	// The bad temperature reply became a problem, not a failure.
	require.Len(info.Problems, 1)
	require.Contains(info.Problems[0], "GETTEMP")
	require.Zero(info.Temperature)
}

func TestSession_DeviceInfo_AbortsWhenClosed(t *testing.T) {
	require := require.New(t)

	port := &fakePort{replies: [][]byte{testConfigBlock()}}
	s := newTestSession(t, port)

	require.NoError(s.Close())

	_, err := s.DeviceInfo(context.Background())
	require.ErrorIs(err, ErrConnClosed)
}
