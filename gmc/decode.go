package gmc

import (
	"encoding/binary"
	"strings"
	"time"
)

// Decoders are pure byte-sequence-to-value functions, invoked only on a
// successful exchange. They validate payload semantics and return a
// *DecodeError on anomalies; they never panic on device data.

// DecodeVersion decodes the GETVER reply: hardware model and firmware
// revision as ASCII, e.g. "GMC-300Re 4.20".
func DecodeVersion(data []byte) (string, error) {
	if len(data) != VersionLen {
		return "", decodeErrorf(string(CmdGetVersion), "payload length %d, want %d", len(data), VersionLen)
	}

	for _, b := range data {
		if b != 0 && (b < 0x20 || b > 0x7E) {
			return "", decodeErrorf(string(CmdGetVersion), "non-ASCII byte 0x%02x in version string", b)
		}
	}

	return strings.TrimRight(string(data), " \x00"), nil
}

// DecodeCPM decodes the GETCPM reply: a big-endian unsigned 16-bit count
// per minute.
func DecodeCPM(data []byte) (uint16, error) {
	if len(data) != CountLen {
		return 0, decodeErrorf(string(CmdGetCPM), "payload length %d, want %d", len(data), CountLen)
	}

	return binary.BigEndian.Uint16(data), nil
}

// DecodeCPS decodes the GETCPS reply and reports it as a CPM-equivalent.
//
// The top two bits of the first byte are reserved marker bits and must be
// masked off before combining big-endian; the 14-bit counts-per-second
// value is then scaled by 60.
func DecodeCPS(data []byte) (int, error) {
	if len(data) != CountLen {
		return 0, decodeErrorf(string(CmdGetCPS), "payload length %d, want %d", len(data), CountLen)
	}

	cps := int(data[0]&0x3F)<<8 | int(data[1])

	return cps * 60, nil
}

// DecodeVoltage decodes the GETVOLT reply: one byte holding tenths of a
// volt, e.g. 0x3E (62) means 6.2 V.
func DecodeVoltage(data []byte) (float64, error) {
	if len(data) != VoltageLen {
		return 0, decodeErrorf(string(CmdGetVoltage), "payload length %d, want %d", len(data), VoltageLen)
	}

	return float64(data[0]) / 10.0, nil
}

// DecodeTemperature decodes the GETTEMP reply in degrees Celsius:
// integer part, single fractional digit, sign flag (nonzero means
// negative), and a fixed trailer byte.
//
// A fractional digit outside 0-9 is a decode anomaly and is surfaced,
// not silently truncated.
func DecodeTemperature(data []byte) (float64, error) {
	if len(data) != TempLen {
		return 0, decodeErrorf(string(CmdGetTemp), "payload length %d, want %d", len(data), TempLen)
	}

	frac := data[1]
	if frac > 9 {
		return 0, decodeErrorf(string(CmdGetTemp), "fractional digit %d out of range [0, 9]", frac)
	}

	temp := float64(data[0]) + float64(frac)/10.0
	if data[2] != 0 {
		temp = -temp
	}

	return temp, nil
}

// Gyro holds one gyroscope sample, one 16-bit value per axis.
type Gyro struct {
	X uint16
	Y uint16
	Z uint16
}

// DecodeGyro decodes the GETGYRO reply: three big-endian 16-bit axis
// values followed by a fixed trailer byte.
func DecodeGyro(data []byte) (Gyro, error) {
	if len(data) != GyroLen {
		return Gyro{}, decodeErrorf(string(CmdGetGyro), "payload length %d, want %d", len(data), GyroLen)
	}

	return Gyro{
		X: binary.BigEndian.Uint16(data[0:2]),
		Y: binary.BigEndian.Uint16(data[2:4]),
		Z: binary.BigEndian.Uint16(data[4:6]),
	}, nil
}

const hexDigits = "0123456789ABCDEF"

// DecodeSerialNumber decodes the GETSERIAL reply: 7 bytes rendered as a
// 14-character uppercase hex string, high nibble of each byte first.
func DecodeSerialNumber(data []byte) (string, error) {
	if len(data) != SerialNumberLen {
		return "", decodeErrorf(string(CmdGetSerial), "payload length %d, want %d", len(data), SerialNumberLen)
	}

	var sb strings.Builder
	sb.Grow(2 * SerialNumberLen)
	for _, b := range data {
		sb.WriteByte(hexDigits[b>>4])
		sb.WriteByte(hexDigits[b&0x0F])
	}

	return sb.String(), nil
}

// DecodeDateTime decodes the GETDATETIME reply: YY MM DD hh mm ss plus a
// trailer byte, with the year offset from 2000. Impossible calendar
// values yield a decode error, never a crash or a normalized date.
func DecodeDateTime(data []byte) (time.Time, error) {
	if len(data) != DateTimeLen {
		return time.Time{}, decodeErrorf(string(CmdGetDateTime), "payload length %d, want %d", len(data), DateTimeLen)
	}

	year := 2000 + int(data[0])
	month := int(data[1])
	day := int(data[2])
	hour := int(data[3])
	minute := int(data[4])
	second := int(data[5])

	if month < 1 || month > 12 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, decodeErrorf(string(CmdGetDateTime),
			"impossible date-time %02d-%02d-%02d %02d:%02d:%02d", data[0], month, day, hour, minute, second)
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
	// time.Date normalizes out-of-range days (e.g. Feb 30); a round-trip
	// mismatch exposes them.
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year {
		return time.Time{}, decodeErrorf(string(CmdGetDateTime),
			"impossible date-time %02d-%02d-%02d %02d:%02d:%02d", data[0], month, day, hour, minute, second)
	}

	return t, nil
}
