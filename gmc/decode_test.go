package gmc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeVersion(t *testing.T) {
	require := require.New(t)

	ver, err := DecodeVersion([]byte("GMC-300Re 4.20"))
	require.NoError(err)
	require.Equal("GMC-300Re 4.20", ver)

	// Trailing padding is stripped.
	ver, err = DecodeVersion([]byte("GMC-500+Re 2.\x00"))
	require.NoError(err)
	require.Equal("GMC-500+Re 2.", ver)

	_, err = DecodeVersion([]byte("GMC-300"))
	require.Error(err)
	require.True(IsDecodeError(err))

	_, err = DecodeVersion([]byte{0x01, 'M', 'C', '-', '3', '0', '0', 'R', 'e', ' ', '4', '.', '2', '0'})
	require.Error(err)
	require.True(IsDecodeError(err))
}

func TestDecodeCPM(t *testing.T) {
	require := require.New(t)

	cpm, err := DecodeCPM([]byte{0x0B, 0xEA})
	require.NoError(err)
	require.Equal(uint16(3050), cpm)

	cpm, err = DecodeCPM([]byte{0x00, 0x00})
	require.NoError(err)
	require.Zero(cpm)

	_, err = DecodeCPM([]byte{0x0B})
	require.True(IsDecodeError(err))
}

func TestDecodeCPS(t *testing.T) {
	require := require.New(t)

	// Marker bits in the high byte are masked off.
	cpm, err := DecodeCPS([]byte{0x80, 0x1C})
	require.NoError(err)
	require.Equal(28*60, cpm)

	// All bits set: the 14-bit maximum.
	cpm, err = DecodeCPS([]byte{0xFF, 0xFF})
	require.NoError(err)
	require.Equal(982980, cpm)

	_, err = DecodeCPS(nil)
	require.True(IsDecodeError(err))
}

func TestDecodeVoltage(t *testing.T) {
	require := require.New(t)

	volt, err := DecodeVoltage([]byte{0x3E})
	require.NoError(err)
	require.InDelta(6.2, volt, 1e-9)

	_, err = DecodeVoltage([]byte{0x3E, 0x00})
	require.True(IsDecodeError(err))
}

func TestDecodeTemperature(t *testing.T) {
	require := require.New(t)

	temp, err := DecodeTemperature([]byte{23, 4, 0, 0xAA})
	require.NoError(err)
	require.InDelta(23.4, temp, 1e-9)

	temp, err = DecodeTemperature([]byte{5, 0, 1, 0xAA})
	require.NoError(err)
	require.InDelta(-5.0, temp, 1e-9)

	// Fractional digit above 9 is surfaced, not truncated.
	_, err = DecodeTemperature([]byte{23, 10, 0, 0xAA})
	require.True(IsDecodeError(err))
}

func TestDecodeGyro(t *testing.T) {
	require := require.New(t)

	g, err := DecodeGyro([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0xAA})
	require.NoError(err)
	require.Equal(Gyro{X: 0x0102, Y: 0x0304, Z: 0x0506}, g)

	_, err = DecodeGyro([]byte{0x01, 0x02})
	require.True(IsDecodeError(err))
}

func TestDecodeSerialNumber(t *testing.T) {
	require := require.New(t)

	sn, err := DecodeSerialNumber([]byte{0xF4, 0x88, 0x00, 0x7E, 0x05, 0x12, 0x34})
	require.NoError(err)
	require.Equal("F488007E051234", sn)

	_, err = DecodeSerialNumber([]byte{0xF4})
	require.True(IsDecodeError(err))
}

func TestDecodeDateTime(t *testing.T) {
	require := require.New(t)

	dt, err := DecodeDateTime([]byte{17, 12, 31, 14, 3, 19, 0xAA})
	require.NoError(err)
	require.Equal(time.Date(2017, 12, 31, 14, 3, 19, 0, time.Local), dt)

	cases := [][]byte{
		{17, 13, 1, 0, 0, 0, 0xAA},  // month 13
		{17, 0, 1, 0, 0, 0, 0xAA},   // month 0
		{17, 2, 30, 0, 0, 0, 0xAA},  // Feb 30
		{17, 1, 1, 24, 0, 0, 0xAA},  // hour 24
		{17, 1, 1, 0, 60, 0, 0xAA},  // minute 60
		{17, 1, 1, 0, 0, 60, 0xAA},  // second 60
	}
	for _, data := range cases {
		_, err := DecodeDateTime(data)
		assert.True(t, IsDecodeError(err), "data %v", data)
	}

	// Leap day on a leap year is valid.
	dt, err = DecodeDateTime([]byte{20, 2, 29, 0, 0, 0, 0xAA})
	require.NoError(err)
	require.Equal(time.Date(2020, 2, 29, 0, 0, 0, 0, time.Local), dt)
}
