package gmc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gmcdev/go-gmc/logger"
)

// Session exposes one typed method per device operation on top of the
// exchange engine. It is safe for concurrent use; the underlying
// connection serializes all exchanges.
type Session struct {
	cfg     *ConnectionConfig
	conn    *Conn
	logger  logger.Logger
	profile Profile

	mu         sync.Mutex
	powerState SwitchState

	hb heartbeatHub
}

// NewSession wraps an existing connection.
func NewSession(conn *Conn) *Session {
	s := &Session{
		cfg:        conn.cfg,
		conn:       conn,
		logger:     conn.logger,
		profile:    conn.cfg.profile,
		powerState: SwitchUnknown,
	}
	s.hb.init()

	return s
}

// Connect opens the configured serial port and verifies that a device is
// actually answering on it. A serial port opens cleanly even when no
// device listens or the baud rate is wrong, so opening alone proves
// nothing; Connect issues a configuration read as the probe.
func Connect(ctx context.Context, cfg *ConnectionConfig) (*Session, error) {
	conn, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	s := NewSession(conn)
	if _, err := s.Verify(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("gmc: no device answering on %s at %d baud: %w", cfg.port, cfg.baudRate, err)
	}

	return s, nil
}

// Conn returns the underlying connection.
func (s *Session) Conn() *Conn { return s.conn }

// Profile returns the device profile the session was built with.
func (s *Session) Profile() Profile { return s.profile }

// Metrics returns the connection metrics.
func (s *Session) Metrics() *SessionMetrics { return s.conn.Metrics() }

// Close stops heartbeat streaming if active and closes the connection.
func (s *Session) Close() error {
	if s.hb.running.Load() {
		_ = s.StopHeartbeat(context.Background())
	}
	return s.conn.Close()
}

// Verify reads the configuration block to confirm communication and
// caches the device power state from it.
func (s *Session) Verify(ctx context.Context) (*DeviceConfig, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.powerState = cfg.PowerState()
	s.mu.Unlock()

	s.logger.Info("device verified",
		"model", s.profile.Model, "power", cfg.PowerState())

	return cfg, nil
}

// PowerState returns the power state cached by the last Verify,
// SwitchUnknown before any successful verification.
func (s *Session) PowerState() SwitchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.powerState
}

// execute runs a catalog command and returns its reply.
func (s *Session) execute(ctx context.Context, cmd Command, args []byte) (*Reply, error) {
	spec, ok := LookupCommand(cmd)
	if !ok {
		return nil, fmt.Errorf("gmc: no spec for command %q", cmd)
	}

	return s.conn.Execute(ctx, spec, args)
}

// decodeFailed counts and returns a decode error.
func (s *Session) decodeFailed(err error) error {
	s.conn.metrics.incDecodeErrCount()
	s.logger.Error("reply decode failed", "error", err)
	return err
}

// Version reads the hardware model and firmware revision string.
func (s *Session) Version(ctx context.Context) (string, error) {
	reply, err := s.execute(ctx, CmdGetVersion, nil)
	if err != nil {
		return "", err
	}

	ver, err := DecodeVersion(reply.Data)
	if err != nil {
		return "", s.decodeFailed(err)
	}

	return ver, nil
}

// CPM reads the current count rate in counts per minute.
func (s *Session) CPM(ctx context.Context) (uint16, error) {
	reply, err := s.execute(ctx, CmdGetCPM, nil)
	if err != nil {
		return 0, err
	}

	cpm, err := DecodeCPM(reply.Data)
	if err != nil {
		return 0, s.decodeFailed(err)
	}

	return cpm, nil
}

// CPS reads the current counts-per-second value, reported as a
// CPM-equivalent (CPS scaled by 60).
func (s *Session) CPS(ctx context.Context) (int, error) {
	reply, err := s.execute(ctx, CmdGetCPS, nil)
	if err != nil {
		return 0, err
	}

	cpm, err := DecodeCPS(reply.Data)
	if err != nil {
		return 0, s.decodeFailed(err)
	}

	return cpm, nil
}

// Voltage reads the battery voltage in volts.
func (s *Session) Voltage(ctx context.Context) (float64, error) {
	reply, err := s.execute(ctx, CmdGetVoltage, nil)
	if err != nil {
		return 0, err
	}

	volt, err := DecodeVoltage(reply.Data)
	if err != nil {
		return 0, s.decodeFailed(err)
	}

	return volt, nil
}

// Temperature reads the device temperature in degrees Celsius.
// Supported from GMC-320 Re.3.01 on; older units do not answer.
func (s *Session) Temperature(ctx context.Context) (float64, error) {
	reply, err := s.execute(ctx, CmdGetTemp, nil)
	if err != nil {
		return 0, err
	}

	temp, err := DecodeTemperature(reply.Data)
	if err != nil {
		return 0, s.decodeFailed(err)
	}

	return temp, nil
}

// GyroSample reads one gyroscope sample.
// Supported from GMC-320 Re.3.01 on; older units do not answer.
func (s *Session) GyroSample(ctx context.Context) (Gyro, error) {
	reply, err := s.execute(ctx, CmdGetGyro, nil)
	if err != nil {
		return Gyro{}, err
	}

	g, err := DecodeGyro(reply.Data)
	if err != nil {
		return Gyro{}, s.decodeFailed(err)
	}

	return g, nil
}

// SerialNumber reads the 14-digit device serial number.
func (s *Session) SerialNumber(ctx context.Context) (string, error) {
	reply, err := s.execute(ctx, CmdGetSerial, nil)
	if err != nil {
		return "", err
	}

	sn, err := DecodeSerialNumber(reply.Data)
	if err != nil {
		return "", s.decodeFailed(err)
	}

	return sn, nil
}

// DateTime reads the device clock.
func (s *Session) DateTime(ctx context.Context) (time.Time, error) {
	reply, err := s.execute(ctx, CmdGetDateTime, nil)
	if err != nil {
		return time.Time{}, err
	}

	t, err := DecodeDateTime(reply.Data)
	if err != nil {
		return time.Time{}, s.decodeFailed(err)
	}

	return t, nil
}

// SetDateTime writes the given time to the device clock.
func (s *Session) SetDateTime(ctx context.Context, t time.Time) error {
	args, err := encodeDateTimeArgs(t)
	if err != nil {
		return err
	}

	_, err = s.execute(ctx, CmdSetDateTime, args)
	return err
}

// SyncDateTime writes the current time of the configured clock source to
// the device clock.
func (s *Session) SyncDateTime(ctx context.Context) error {
	return s.SetDateTime(ctx, s.cfg.clock())
}

// Config reads the 256-byte configuration block.
func (s *Session) Config(ctx context.Context) (*DeviceConfig, error) {
	reply, err := s.execute(ctx, CmdGetConfig, nil)
	if err != nil {
		return nil, err
	}

	cfg, err := DeviceConfigFromBytes(reply.Data)
	if err != nil {
		return nil, s.decodeFailed(err)
	}

	return cfg, nil
}

// ReadFlash reads length bytes of history flash memory starting at addr.
func (s *Session) ReadFlash(ctx context.Context, addr uint32, length int) ([]byte, error) {
	args, err := encodeReadFlashArgs(addr, length, s.profile)
	if err != nil {
		return nil, err
	}

	reply, err := s.conn.Execute(ctx, ReadFlashSpec(length), args)
	if err != nil {
		return nil, err
	}

	return reply.Data, nil
}

// WriteConfigByte changes one byte of the device configuration.
//
// The device protocol offers no single-byte update: the whole block is
// erased and rewritten byte by byte (skipping the trailing 0xFF tail),
// then CFGUPDATE makes the device reload it. The sequence is not atomic;
// when it fails partway the device is left in a mixed state and the
// caller must re-read the configuration to learn what actually applied.
// Any previously fetched DeviceConfig is stale after this call.
func (s *Session) WriteConfigByte(ctx context.Context, offset int, value byte) error {
	current, err := s.Config(ctx)
	if err != nil {
		return fmt.Errorf("gmc: read config before write: %w", err)
	}

	plan, err := current.WritePlan(offset, value)
	if err != nil {
		return err
	}

	if _, err := s.execute(ctx, CmdEraseConfig, nil); err != nil {
		return fmt.Errorf("gmc: erase config: %w", err)
	}

	for _, w := range plan {
		args, err := encodeWriteConfigArgs(w.Offset, w.Value)
		if err != nil {
			return err
		}

		if _, err := s.execute(ctx, CmdWriteConfig, args); err != nil {
			return fmt.Errorf("gmc: write config byte %d of %d: device left in mixed state, re-read to verify: %w",
				w.Offset, len(plan), err)
		}
	}

	if err := s.UpdateConfig(ctx); err != nil {
		return fmt.Errorf("gmc: config written but reload failed, re-read to verify: %w", err)
	}

	s.logger.Info("config byte written",
		"offset", offset, "value", value, "bytesWritten", len(plan))

	return nil
}

// UpdateConfig makes the device reload its stored configuration.
func (s *Session) UpdateConfig(ctx context.Context) error {
	_, err := s.execute(ctx, CmdUpdateConfig, nil)
	return err
}

// EraseConfig erases the whole device configuration block.
// Use WriteConfigByte for ordinary configuration changes.
func (s *Session) EraseConfig(ctx context.Context) error {
	_, err := s.execute(ctx, CmdEraseConfig, nil)
	return err
}

// PowerOn turns the device on.
func (s *Session) PowerOn(ctx context.Context) error {
	_, err := s.execute(ctx, CmdPowerOn, nil)
	return err
}

// PowerOff turns the device off.
func (s *Session) PowerOff(ctx context.Context) error {
	_, err := s.execute(ctx, CmdPowerOff, nil)
	return err
}

// Reboot reboots the device.
func (s *Session) Reboot(ctx context.Context) error {
	_, err := s.execute(ctx, CmdReboot, nil)
	return err
}

// FactoryReset resets the device to factory defaults.
func (s *Session) FactoryReset(ctx context.Context) error {
	_, err := s.execute(ctx, CmdFactoryReset, nil)
	return err
}

// Drain reads and discards stray bytes until the line is silent.
func (s *Session) Drain(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return s.conn.Drain()
}

// DeviceInfo is a snapshot of the device state composed from several
// operations and the configuration block.
type DeviceInfo struct {
	Model        Model
	Version      string
	SerialNumber string

	DateTime time.Time
	// ClockDelta is device time minus host time; positive means the
	// device clock runs ahead.
	ClockDelta time.Duration

	Voltage     float64
	Temperature float64
	Gyro        Gyro

	Power    SwitchState
	Alarm    SwitchState
	Speaker  SwitchState
	SaveMode SaveMode
	// MaxCPM is the recorded maximum count rate; MaxCPMInvalid means the
	// field was never written.
	MaxCPM      uint16
	BaudRate    int
	Calibration [CalibrationPoints]CalibrationPoint

	// Problems lists operations that failed non-fatally while composing
	// the snapshot (e.g. GETTEMP on units without a sensor). The
	// corresponding fields hold zero values.
	Problems []string
}

// DeviceInfo composes a full device snapshot.
//
// Individual operation failures are tolerated and recorded in Problems —
// older units simply do not answer some commands — but a closed
// connection aborts immediately.
func (s *Session) DeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	info := &DeviceInfo{Model: s.profile.Model, SaveMode: SaveModeUnknown}

	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}

	info.Power = cfg.PowerState()
	info.Alarm = cfg.AlarmState()
	info.Speaker = cfg.SpeakerState()
	info.SaveMode = cfg.SaveMode()
	info.MaxCPM = cfg.MaxCPM()
	info.Calibration = cfg.Calibration(s.profile)

	if baud, err := cfg.BaudRate(); err != nil {
		info.note(err)
	} else {
		info.BaudRate = baud
	}

	if ver, err := s.Version(ctx); s.fatalInfo(err) {
		return nil, err
	} else if err != nil {
		info.note(err)
	} else {
		info.Version = ver
	}

	if sn, err := s.SerialNumber(ctx); s.fatalInfo(err) {
		return nil, err
	} else if err != nil {
		info.note(err)
	} else {
		info.SerialNumber = sn
	}

	if t, err := s.DateTime(ctx); s.fatalInfo(err) {
		return nil, err
	} else if err != nil {
		info.note(err)
	} else {
		info.DateTime = t
		info.ClockDelta = t.Sub(s.cfg.clock()).Round(time.Second)
	}

	if volt, err := s.Voltage(ctx); s.fatalInfo(err) {
		return nil, err
	} else if err != nil {
		info.note(err)
	} else {
		info.Voltage = volt
	}

	if temp, err := s.Temperature(ctx); s.fatalInfo(err) {
		return nil, err
	} else if err != nil {
		info.note(err)
	} else {
		info.Temperature = temp
	}

	if g, err := s.GyroSample(ctx); s.fatalInfo(err) {
		return nil, err
	} else if err != nil {
		info.note(err)
	} else {
		info.Gyro = g
	}

	return info, nil
}

func (info *DeviceInfo) note(err error) {
	info.Problems = append(info.Problems, err.Error())
}

// fatalInfo reports whether err must abort DeviceInfo composition.
func (s *Session) fatalInfo(err error) bool {
	return errors.Is(err, ErrConnClosed) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
