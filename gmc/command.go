package gmc

import (
	"encoding/binary"
	"math"
	"time"
)

// Command is the ASCII name of a device operation as it appears on the wire.
type Command string

// The fixed GQ-RFC1201 command catalog.
const (
	CmdGetVersion   Command = "GETVER"
	CmdGetCPM       Command = "GETCPM"
	CmdGetCPS       Command = "GETCPS"
	CmdHeartbeatOn  Command = "HEARTBEAT1"
	CmdHeartbeatOff Command = "HEARTBEAT0"
	CmdGetVoltage   Command = "GETVOLT"
	CmdReadFlash    Command = "SPIR"
	CmdGetConfig    Command = "GETCFG"
	CmdEraseConfig  Command = "ECFG"
	CmdWriteConfig  Command = "WCFG"
	CmdUpdateConfig Command = "CFGUPDATE"
	CmdGetSerial    Command = "GETSERIAL"
	CmdSetDateTime  Command = "SETDATETIME"
	CmdGetDateTime  Command = "GETDATETIME"
	CmdGetTemp      Command = "GETTEMP"
	CmdGetGyro      Command = "GETGYRO"
	CmdPowerOff     Command = "POWEROFF"
	CmdPowerOn      Command = "POWERON"
	CmdReboot       Command = "REBOOT"
	CmdFactoryReset Command = "FACTORYRESET"
)

// Fixed reply payload sizes in bytes.
const (
	VersionLen      = 14
	CountLen        = 2
	VoltageLen      = 1
	SerialNumberLen = 7
	DateTimeLen     = 7
	TempLen         = 4
	GyroLen         = 7
	AckLen          = 1

	// ConfigSize is the size of the device configuration block.
	ConfigSize = 256
)

// CommandSpec is a static, immutable description of one device operation:
// the frame template and the reply the device guarantees for it.
type CommandSpec struct {
	// Name is the ASCII command name.
	Name Command

	// ReplyLen is the exact number of reply bytes the device sends.
	// Zero marks a fire-and-forget command: the exchange engine skips
	// the read entirely and the outcome is always OK.
	ReplyLen int
}

var commandSpecs = map[Command]CommandSpec{
	CmdGetVersion:   {Name: CmdGetVersion, ReplyLen: VersionLen},
	CmdGetCPM:       {Name: CmdGetCPM, ReplyLen: CountLen},
	CmdGetCPS:       {Name: CmdGetCPS, ReplyLen: CountLen},
	CmdHeartbeatOn:  {Name: CmdHeartbeatOn},
	CmdHeartbeatOff: {Name: CmdHeartbeatOff},
	CmdGetVoltage:   {Name: CmdGetVoltage, ReplyLen: VoltageLen},
	CmdGetConfig:    {Name: CmdGetConfig, ReplyLen: ConfigSize},
	CmdEraseConfig:  {Name: CmdEraseConfig, ReplyLen: AckLen},
	CmdWriteConfig:  {Name: CmdWriteConfig, ReplyLen: AckLen},
	CmdUpdateConfig: {Name: CmdUpdateConfig, ReplyLen: AckLen},
	CmdGetSerial:    {Name: CmdGetSerial, ReplyLen: SerialNumberLen},
	CmdSetDateTime:  {Name: CmdSetDateTime, ReplyLen: AckLen},
	CmdGetDateTime:  {Name: CmdGetDateTime, ReplyLen: DateTimeLen},
	CmdGetTemp:      {Name: CmdGetTemp, ReplyLen: TempLen},
	CmdGetGyro:      {Name: CmdGetGyro, ReplyLen: GyroLen},
	CmdPowerOff:     {Name: CmdPowerOff},
	CmdPowerOn:      {Name: CmdPowerOn},
	CmdReboot:       {Name: CmdReboot},
	CmdFactoryReset: {Name: CmdFactoryReset, ReplyLen: AckLen},
}

// LookupCommand returns the spec for a fixed-reply command.
// SPIR is not in the table because its reply length depends on the request;
// use ReadFlashSpec instead.
func LookupCommand(cmd Command) (CommandSpec, bool) {
	spec, ok := commandSpecs[cmd]
	return spec, ok
}

// ReadFlashSpec returns the spec for a SPIR read of the given length.
func ReadFlashSpec(length int) CommandSpec {
	return CommandSpec{Name: CmdReadFlash, ReplyLen: length}
}

// Frame delimiters: '<' + NAME + argument bytes + ">>".
const (
	frameOpen  = '<'
	frameClose = ">>"
)

// BuildFrame serializes one outgoing command frame. Argument bytes are
// spliced verbatim between the command name and the closing delimiter.
func BuildFrame(cmd Command, args []byte) []byte {
	frame := make([]byte, 0, 1+len(cmd)+len(args)+len(frameClose))
	frame = append(frame, frameOpen)
	frame = append(frame, cmd...)
	frame = append(frame, args...)
	frame = append(frame, frameClose...)
	return frame
}

// maxFlashAddr is the largest address encodable in SPIR's 3-byte field.
const maxFlashAddr = 1<<24 - 1

// encodeReadFlashArgs encodes the SPIR argument bytes: a 3-byte big-endian
// address followed by a 2-byte big-endian length.
//
// The device expects the length field reduced by one (it delivers one byte
// more than the encoded value), except on legacy firmware where the raw
// length is sent; the profile decides.
func encodeReadFlashArgs(addr uint32, length int, prof Profile) ([]byte, error) {
	if addr > maxFlashAddr {
		return nil, ErrFlashAddrRange
	}
	if length < 1 || length > math.MaxUint16 {
		return nil, ErrFlashLenRange
	}

	enc := length
	if !prof.RawReadLength {
		enc--
	}

	args := make([]byte, 5)
	args[0] = byte(addr >> 16)
	args[1] = byte(addr >> 8)
	args[2] = byte(addr)
	binary.BigEndian.PutUint16(args[3:5], uint16(enc))

	return args, nil
}

// encodeWriteConfigArgs encodes the WCFG argument bytes: offset then value.
func encodeWriteConfigArgs(offset int, value byte) ([]byte, error) {
	if offset < 0 || offset >= ConfigSize {
		return nil, ErrOffsetRange
	}
	return []byte{byte(offset), value}, nil
}

// encodeDateTimeArgs encodes the SETDATETIME argument bytes:
// YY MM DD hh mm ss, with the year as an offset from 2000.
func encodeDateTimeArgs(t time.Time) ([]byte, error) {
	year := t.Year()
	if year < 2000 || year > 2000+255 {
		return nil, ErrYearRange
	}

	return []byte{
		byte(year - 2000),
		byte(t.Month()),
		byte(t.Day()),
		byte(t.Hour()),
		byte(t.Minute()),
		byte(t.Second()),
	}, nil
}
