// Package discover locates GQ GMC Geiger counters on serial ports. It
// enumerates candidate ports and probes each one across baud rates
// until a device answers a version request.
package discover

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"

	"github.com/gmcdev/go-gmc/gmc"
	"github.com/gmcdev/go-gmc/logger"
)

// DefaultBaudRates are probed in descending order; modern devices run
// at 115200 and older ones at 57600, so the common speeds hit first.
var DefaultBaudRates = []int{115200, 57600, 38400, 19200, 9600, 4800, 2400, 1200}

// ErrNotFound is returned when no port answers as a GMC device.
var ErrNotFound = errors.New("discover: no GMC device found")

// knownVIDs are USB vendor ids of the serial bridges GQ ships
// (CH340 clones and Prolific).
var knownVIDs = map[string]bool{
	"1A86": true,
	"067B": true,
}

// PortInfo describes one candidate serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
	// Likely marks ports whose USB vendor id matches a bridge chip GQ
	// is known to ship.
	Likely bool
}

// Device is a discovered, answering device.
type Device struct {
	Port     string
	BaudRate int
	Version  string
}

// Ports lists serial ports, USB-bridged ones first.
func Ports() ([]PortInfo, error) {
	list, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	var likely, rest []PortInfo
	for _, p := range list {
		info := PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          strings.ToUpper(p.VID),
			PID:          strings.ToUpper(p.PID),
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		}
		info.Likely = p.IsUSB && knownVIDs[info.VID]

		if info.Likely {
			likely = append(likely, info)
		} else {
			rest = append(rest, info)
		}
	}

	return append(likely, rest...), nil
}

// AutoBaud probes the given port at each baud rate in order and returns
// the first one at which a device answers a version request. The probe
// uses a single attempt per baud rate; a wrong rate shows up as a short
// read and there is no point retrying it.
func AutoBaud(ctx context.Context, port string, bauds []int, opts ...gmc.ConnOption) (*Device, error) {
	if len(bauds) == 0 {
		bauds = DefaultBaudRates
	}

	log := logger.GetLogger()

	for _, baud := range bauds {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// One attempt with a tight timeout per rate: at the wrong speed
		// nothing useful ever arrives, so retrying only slows the scan.
		probeOpts := append([]gmc.ConnOption{
			gmc.WithBaudRate(baud),
			gmc.WithAttemptLimit(1),
			gmc.WithReadTimeout(500 * time.Millisecond),
		}, opts...)

		cfg, err := gmc.NewConnectionConfig(port, probeOpts...)
		if err != nil {
			return nil, err
		}

		conn, err := gmc.Open(cfg)
		if err != nil {
			// The port itself is unusable; other baud rates will not
			// change that.
			return nil, err
		}

		s := gmc.NewSession(conn)
		ver, verr := s.Version(ctx)
		_ = s.Close()

		if verr == nil && ver != "" {
			log.Info("device answered", "port", port, "baudRate", baud, "version", ver)
			return &Device{Port: port, BaudRate: baud, Version: ver}, nil
		}

		log.Debug("no answer", "port", port, "baudRate", baud, "error", verr)
	}

	return nil, ErrNotFound
}

// Scan probes every enumerated port, likely ones first, and returns the
// first answering device.
func Scan(ctx context.Context, opts ...gmc.ConnOption) (*Device, error) {
	ports, err := Ports()
	if err != nil {
		return nil, err
	}

	for _, p := range ports {
		dev, err := AutoBaud(ctx, p.Name, nil, opts...)
		if err == nil {
			return dev, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, ErrNotFound
}
