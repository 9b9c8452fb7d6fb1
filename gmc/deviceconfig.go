package gmc

import (
	"encoding/binary"
	"math"
)

// Fixed field offsets within the configuration block.
const (
	OffsetPower        = 0
	OffsetAlarm        = 1
	OffsetSpeaker      = 2
	OffsetCalibration  = 8 // three {CPM uint16, dose float32} pairs
	OffsetSaveDataType = 32
	OffsetMaxCPM       = 49 // big-endian uint16
	OffsetBaudRate     = 57
)

// calibrationPairSize is the stride between calibration points:
// a 2-byte CPM value followed by a 4-byte dose rate.
const calibrationPairSize = 6

// CalibrationPoints is the number of calibration points the device stores.
const CalibrationPoints = 3

// emptyByte is the flash erase value; unused configuration bytes hold it.
const emptyByte = 0xFF

// MaxCPMInvalid is the sentinel the device reports in the max-CPM field
// when no valid maximum has been recorded.
const MaxCPMInvalid = math.MaxUint16

// SwitchState is the decoded value of an on/off configuration byte.
// Out-of-range bytes map to the Unknown state rather than an error.
type SwitchState string

const (
	SwitchOn      SwitchState = "ON"
	SwitchOff     SwitchState = "OFF"
	SwitchUnknown SwitchState = "Unknown"
)

// SaveMode is the history save-data-type setting.
type SaveMode int

const (
	SaveModeOff SaveMode = iota
	SaveModeCPS
	SaveModeCPM
	SaveModeCPMHourly

	// SaveModeUnknown marks an out-of-range save-data-type byte.
	SaveModeUnknown SaveMode = -1
)

// Interval returns the seconds between history records for this mode,
// zero when history saving is off or the mode is unknown.
func (m SaveMode) Interval() int {
	switch m {
	case SaveModeCPS:
		return 1
	case SaveModeCPM:
		return 60
	case SaveModeCPMHourly:
		return 3600
	default:
		return 0
	}
}

func (m SaveMode) String() string {
	switch m {
	case SaveModeOff:
		return "OFF (no history saving)"
	case SaveModeCPS:
		return "CPS, save every second"
	case SaveModeCPM:
		return "CPM, save every minute"
	case SaveModeCPMHourly:
		return "CPM, save hourly average"
	default:
		return "Unknown save mode"
	}
}

// baudRateCodes maps the configuration byte at OffsetBaudRate to the
// actual serial speed.
var baudRateCodes = map[byte]int{
	64:  1200,
	160: 2400,
	208: 4800,
	232: 9600,
	240: 14400,
	244: 19200,
	248: 28800,
	250: 38400,
	252: 57600,
	254: 115200,
}

// BaudRateCode returns the configuration byte encoding the given serial
// speed, false when the device has no code for it.
func BaudRateCode(baud int) (byte, bool) {
	for code, b := range baudRateCodes {
		if b == baud {
			return code, true
		}
	}
	return 0, false
}

// CalibrationPoint is one calibration entry: a count rate, the dose rate
// the factory assigned to it, and the implied sensitivity.
type CalibrationPoint struct {
	// CPM is the count rate of this calibration point.
	CPM uint16
	// DoseRate is the dose rate in µSv/h assigned to CPM.
	DoseRate float64
	// Sensitivity is DoseRate/CPM in µSv/h per CPM, zero when CPM is zero.
	Sensitivity float64
}

// DeviceConfig is the device's 256-byte persistent settings record,
// stored verbatim as retrieved by GETCFG.
//
// Field offsets are fixed by the protocol version; reserved bytes hold
// the 0xFF erase value and are tolerated, not rejected. The in-memory
// copy becomes stale as soon as any configuration write happens on the
// device; re-fetch after writes.
type DeviceConfig struct {
	data [ConfigSize]byte
}

// DeviceConfigFromBytes copies a raw GETCFG payload into a DeviceConfig.
func DeviceConfigFromBytes(data []byte) (*DeviceConfig, error) {
	if len(data) != ConfigSize {
		return nil, decodeErrorf(string(CmdGetConfig), "payload length %d, want %d", len(data), ConfigSize)
	}

	cfg := &DeviceConfig{}
	copy(cfg.data[:], data)

	return cfg, nil
}

// Bytes returns a copy of the raw configuration block.
func (c *DeviceConfig) Bytes() []byte {
	out := make([]byte, ConfigSize)
	copy(out, c.data[:])
	return out
}

// Byte returns the raw byte at the given offset.
func (c *DeviceConfig) Byte(offset int) (byte, error) {
	if offset < 0 || offset >= ConfigSize {
		return 0, ErrOffsetRange
	}
	return c.data[offset], nil
}

// PowerState decodes the power byte: 0 means ON, 255 means OFF, anything
// else is Unknown.
func (c *DeviceConfig) PowerState() SwitchState {
	switch c.data[OffsetPower] {
	case 0:
		return SwitchOn
	case 255:
		return SwitchOff
	default:
		return SwitchUnknown
	}
}

// AlarmState decodes the alarm byte: 0 means OFF, 1 means ON.
func (c *DeviceConfig) AlarmState() SwitchState {
	return decodeSwitch(c.data[OffsetAlarm])
}

// SpeakerState decodes the speaker byte: 0 means OFF, 1 means ON.
func (c *DeviceConfig) SpeakerState() SwitchState {
	return decodeSwitch(c.data[OffsetSpeaker])
}

func decodeSwitch(b byte) SwitchState {
	switch b {
	case 0:
		return SwitchOff
	case 1:
		return SwitchOn
	default:
		return SwitchUnknown
	}
}

// SaveMode decodes the history save-data-type byte; out-of-range values
// yield SaveModeUnknown.
func (c *DeviceConfig) SaveMode() SaveMode {
	mode := c.data[OffsetSaveDataType]
	if mode > byte(SaveModeCPMHourly) {
		return SaveModeUnknown
	}
	return SaveMode(mode)
}

// BaudRate decodes the baud-rate code into the actual serial speed.
// An unknown code is a decode error, never a guessed value.
func (c *DeviceConfig) BaudRate() (int, error) {
	code := c.data[OffsetBaudRate]
	baud, ok := baudRateCodes[code]
	if !ok {
		return 0, decodeErrorf(string(CmdGetConfig), "unknown baud rate code %d", code)
	}

	return baud, nil
}

// MaxCPM returns the recorded maximum count rate. The device reports
// MaxCPMInvalid (65535) when the field has never been written.
func (c *DeviceConfig) MaxCPM() uint16 {
	return binary.BigEndian.Uint16(c.data[OffsetMaxCPM : OffsetMaxCPM+2])
}

// Calibration extracts the three calibration points.
//
// Each point is a big-endian uint16 CPM value followed by a float32 dose
// rate whose byte order depends on the hardware family; the profile
// decides. Sensitivity guards against a zero CPM divisor.
func (c *DeviceConfig) Calibration(prof Profile) [CalibrationPoints]CalibrationPoint {
	var points [CalibrationPoints]CalibrationPoint

	for i := range points {
		off := OffsetCalibration + i*calibrationPairSize
		cpm := binary.BigEndian.Uint16(c.data[off : off+2])

		var bits uint32
		if prof.BigEndianCalibration {
			bits = binary.BigEndian.Uint32(c.data[off+2 : off+6])
		} else {
			bits = binary.LittleEndian.Uint32(c.data[off+2 : off+6])
		}
		dose := float64(math.Float32frombits(bits))

		points[i] = CalibrationPoint{CPM: cpm, DoseRate: dose}
		if cpm != 0 {
			points[i].Sensitivity = dose / float64(cpm)
		}
	}

	return points
}

// ByteWrite is one WCFG step of a configuration write plan.
type ByteWrite struct {
	Offset int
	Value  byte
}

// WritePlan computes the per-byte write sequence that stores this
// configuration with one byte changed.
//
// The device configuration is written as erase-whole-block followed by
// one WCFG per byte; trailing 0xFF bytes are skipped since erasing
// already left them in that state. All other byte positions are carried
// over unchanged, so replaying the plan after ECFG reproduces the block
// exactly apart from the trailing-0xFF trim.
func (c *DeviceConfig) WritePlan(offset int, value byte) ([]ByteWrite, error) {
	if offset < 0 || offset >= ConfigSize {
		return nil, ErrOffsetRange
	}

	block := c.Bytes()
	block[offset] = value

	end := len(block)
	for end > 0 && block[end-1] == emptyByte {
		end--
	}

	plan := make([]ByteWrite, 0, end)
	for i := 0; i < end; i++ {
		plan = append(plan, ByteWrite{Offset: i, Value: block[i]})
	}

	return plan, nil
}
