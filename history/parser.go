// Package history parses the on-device flash log of GQ GMC Geiger
// counters and reads it out over a live session.
//
// The log is a ring buffer of single count bytes interleaved with tagged
// records: timestamps with the active save interval, double-byte counts
// for rates above 255, and free-text notes. Parsing rotates the buffer
// to the oldest timestamp, walks it sequentially and assigns each count
// a time derived from the last timestamp seen and the save interval.
package history

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gmcdev/go-gmc/gmc"
)

// Tagged record markers inside the flash log.
const (
	tagPrefix1 = 0x55
	tagPrefix2 = 0xAA

	tagDateTime    = 0x00
	tagDoubleByte  = 0x01
	tagNote        = 0x02
	dateTimeTagLen = 12

	emptyCell = 0xFF
)

// Errors returned by Parse.
var (
	ErrNoTimestamp = errors.New("history: no timestamp record in data")
	ErrEmptyLog    = errors.New("history: log contains no data")
)

// Record is one decoded log entry.
type Record struct {
	// ByteIndex is the record's offset in the rotated flash image.
	ByteIndex int
	Time      time.Time
	// CPM is the count normalized to counts per minute. Zero for note
	// records.
	CPM int
	// Note holds the text of a note record; empty otherwise.
	Note string
	// Invalid marks a count stored in a gap where no timestamp context
	// exists, or with an unknown save mode.
	Invalid bool
}

// ParseOptions control Parse behavior.
type ParseOptions struct {
	// KeepEmpty keeps 0xFF cells between records as zero-count entries
	// instead of skipping them.
	KeepEmpty bool
}

// Parse decodes a raw flash image into time-ordered records.
func Parse(data []byte, opts ParseOptions) ([]Record, error) {
	data = trimTrailingEmpty(data)
	if len(data) == 0 {
		return nil, ErrEmptyLog
	}

	start, ok := firstTimestamp(data)
	if !ok {
		return nil, ErrNoTimestamp
	}

	// The log is a ring buffer: data before the oldest timestamp is the
	// newest tail. Rotate so the walk starts at the oldest record.
	rotated := make([]byte, 0, len(data))
	rotated = append(rotated, data[start:]...)
	rotated = append(rotated, data[:start]...)

	p := &parser{data: rotated, keepEmpty: opts.KeepEmpty, mode: gmc.SaveModeUnknown}
	p.run()

	sort.SliceStable(p.records, func(i, j int) bool {
		return p.records[i].Time.Before(p.records[j].Time)
	})

	return p.records, nil
}

type parser struct {
	data      []byte
	keepEmpty bool

	pos     int
	mode    gmc.SaveMode
	current time.Time
	hasTime bool

	records []Record
}

func (p *parser) run() {
	for p.pos < len(p.data) {
		idx := p.pos
		b := p.data[p.pos]

		if b == tagPrefix1 && p.tryTagged(idx) {
			continue
		}

		p.pos++

		if b == emptyCell {
			if p.keepEmpty {
				p.emitCount(idx, 0)
			}
			continue
		}

		p.emitCount(idx, int(b))
	}
}

// tryTagged decodes a 0x55 0xAA record at the current position. It
// reports false when the bytes are not a complete tagged record, in
// which case the caller treats the byte as a plain count.
func (p *parser) tryTagged(idx int) bool {
	if p.pos+2 >= len(p.data) || p.data[p.pos+1] != tagPrefix2 {
		return false
	}

	switch p.data[p.pos+2] {
	case tagDateTime:
		if p.pos+dateTimeTagLen > len(p.data) {
			return false
		}
		p.readDateTime()
		return true

	case tagDoubleByte:
		if p.pos+5 > len(p.data) {
			return false
		}
		raw := int(binary.BigEndian.Uint16(p.data[p.pos+3 : p.pos+5]))
		p.pos += 5
		// Only per-second records carry the 2-bit marker in the high
		// byte; CPM and hourly counts use the full 16 bits.
		if p.mode == gmc.SaveModeCPS {
			raw &= 0x3FFF
		}
		p.emitCount(idx, perMinute(raw, p.mode))
		return true

	case tagNote:
		if p.pos+4 > len(p.data) {
			return false
		}
		n := int(p.data[p.pos+3])
		if p.pos+4+n > len(p.data) {
			return false
		}
		text := string(p.data[p.pos+4 : p.pos+4+n])
		p.pos += 4 + n
		p.records = append(p.records, Record{ByteIndex: idx, Time: p.current, Note: text, Invalid: !p.hasTime})
		return true
	}

	return false
}

// readDateTime consumes a 12-byte timestamp record: the two prefix
// bytes, tag, six datetime bytes, a 0x55 0xAA pair and the save mode.
func (p *parser) readDateTime() {
	b := p.data[p.pos:]

	t, err := gmc.DecodeDateTime([]byte{b[3], b[4], b[5], b[6], b[7], b[8], 0})
	mode := gmc.SaveMode(b[11])
	if mode > gmc.SaveModeCPMHourly {
		mode = gmc.SaveModeUnknown
	}

	p.pos += dateTimeTagLen

	if err != nil {
		return
	}

	p.current = t
	p.hasTime = true
	p.mode = mode
}

// emitCount appends a count record and advances the running clock by the
// save interval.
func (p *parser) emitCount(idx, raw int) {
	rec := Record{
		ByteIndex: idx,
		Time:      p.current,
		CPM:       perMinute(raw, p.mode),
		Invalid:   !p.hasTime || p.mode == gmc.SaveModeUnknown || p.mode == gmc.SaveModeOff,
	}
	p.records = append(p.records, rec)

	if p.hasTime {
		p.current = p.current.Add(time.Duration(p.mode.Interval()) * time.Second)
	}
}

// perMinute normalizes a stored count to counts per minute for the
// given save mode.
func perMinute(raw int, mode gmc.SaveMode) int {
	switch mode {
	case gmc.SaveModeCPS:
		return raw * 60
	case gmc.SaveModeCPMHourly:
		// Hourly average is already stored as CPM.
		return raw
	default:
		return raw
	}
}

// firstTimestamp finds the offset of the oldest complete timestamp
// record.
func firstTimestamp(data []byte) (int, bool) {
	for i := 0; i+dateTimeTagLen <= len(data); i++ {
		if data[i] == tagPrefix1 && data[i+1] == tagPrefix2 && data[i+2] == tagDateTime {
			return i, true
		}
	}
	return 0, false
}

func trimTrailingEmpty(data []byte) []byte {
	end := len(data)
	for end > 0 && data[end-1] == emptyCell {
		end--
	}
	return data[:end]
}

// String renders a record the way log viewers print it.
func (r Record) String() string {
	if r.Note != "" {
		return fmt.Sprintf("%s note %q", r.Time.Format(time.DateTime), r.Note)
	}
	return fmt.Sprintf("%s cpm=%d", r.Time.Format(time.DateTime), r.CPM)
}
