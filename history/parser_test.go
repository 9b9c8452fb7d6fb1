package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gmcdev/go-gmc/gmc"
)

// timestampTag builds a 12-byte timestamp record for the given time and
// save mode.
func timestampTag(t time.Time, mode gmc.SaveMode) []byte {
	return []byte{
		tagPrefix1, tagPrefix2, tagDateTime,
		byte(t.Year() - 2000), byte(t.Month()), byte(t.Day()),
		byte(t.Hour()), byte(t.Minute()), byte(t.Second()),
		tagPrefix1, tagPrefix2, byte(mode),
	}
}

func TestParse_SingleByteCounts(t *testing.T) {
	require := require.New(t)

	start := time.Date(2017, 12, 31, 14, 3, 19, 0, time.Local)

	var image []byte
	image = append(image, timestampTag(start, gmc.SaveModeCPS)...)
	image = append(image, 3, 5, 0)
	image = append(image, emptyCell, emptyCell) // trailing erased cells

	records, err := Parse(image, ParseOptions{})
	require.NoError(err)
	require.Len(records, 3)

	require.Equal(start, records[0].Time)
	require.Equal(3*60, records[0].CPM) // CPS mode normalizes to CPM
	require.False(records[0].Invalid)

	require.Equal(start.Add(time.Second), records[1].Time)
	require.Equal(5*60, records[1].CPM)

	require.Equal(start.Add(2*time.Second), records[2].Time)
	require.Zero(records[2].CPM)
}

func TestParse_CPMModeInterval(t *testing.T) {
	require := require.New(t)

	start := time.Date(2020, 6, 1, 8, 0, 0, 0, time.Local)

	var image []byte
	image = append(image, timestampTag(start, gmc.SaveModeCPM)...)
	image = append(image, 42, 43)

	records, err := Parse(image, ParseOptions{})
	require.NoError(err)
	require.Len(records, 2)
	require.Equal(42, records[0].CPM)
	require.Equal(start.Add(time.Minute), records[1].Time)
}

func TestParse_DoubleByteCount(t *testing.T) {
	require := require.New(t)

	start := time.Date(2020, 6, 1, 8, 0, 0, 0, time.Local)

	var image []byte
	image = append(image, timestampTag(start, gmc.SaveModeCPS)...)
	image = append(image, tagPrefix1, tagPrefix2, tagDoubleByte, 0x80, 0x1C)
	image = append(image, 2)

	records, err := Parse(image, ParseOptions{})
	require.NoError(err)
	require.Len(records, 2)

	// Marker bits masked, CPS scaled to CPM.
	require.Equal(28*60, records[0].CPM)
	require.Equal(start, records[0].Time)

	require.Equal(2*60, records[1].CPM)
	require.Equal(start.Add(time.Second), records[1].Time)
}

func TestParse_DoubleByteCountCPMMode(t *testing.T) {
	require := require.New(t)

	start := time.Date(2020, 6, 1, 8, 0, 0, 0, time.Local)

	// In CPM mode the full 16 bits are the count; no marker-bit masking.
	var image []byte
	image = append(image, timestampTag(start, gmc.SaveModeCPM)...)
	image = append(image, tagPrefix1, tagPrefix2, tagDoubleByte, 0x80, 0x00)
	image = append(image, tagPrefix1, tagPrefix2, tagDoubleByte, 0xFF, 0xFF)

	records, err := Parse(image, ParseOptions{})
	require.NoError(err)
	require.Len(records, 2)
	require.Equal(0x8000, records[0].CPM)
	require.Equal(0xFFFF, records[1].CPM)
	require.Equal(start.Add(time.Minute), records[1].Time)
}

func TestParse_Note(t *testing.T) {
	require := require.New(t)

	start := time.Date(2020, 6, 1, 8, 0, 0, 0, time.Local)

	var image []byte
	image = append(image, timestampTag(start, gmc.SaveModeCPS)...)
	image = append(image, 7)
	image = append(image, tagPrefix1, tagPrefix2, tagNote, 5)
	image = append(image, "check"...)
	image = append(image, 9)

	records, err := Parse(image, ParseOptions{})
	require.NoError(err)
	require.Len(records, 3)

	require.Equal("check", records[1].Note)
	require.Zero(records[1].CPM)
	// A note occupies no time slot; the next count shares its time.
	require.Equal(start.Add(time.Second), records[1].Time)
	require.Equal(records[1].Time, records[2].Time)
}

func TestParse_RingRotation(t *testing.T) {
	require := require.New(t)

	start := time.Date(2020, 6, 1, 8, 0, 0, 0, time.Local)

	// The buffer wrapped: the newest count sits before the oldest
	// timestamp tag.
	var image []byte
	image = append(image, 7)
	image = append(image, timestampTag(start, gmc.SaveModeCPS)...)
	image = append(image, 3, 5)

	records, err := Parse(image, ParseOptions{})
	require.NoError(err)
	require.Len(records, 3)

	// The wrapped byte parses after the in-order counts.
	require.Equal(3*60, records[0].CPM)
	require.Equal(5*60, records[1].CPM)
	require.Equal(7*60, records[2].CPM)
	require.Equal(start.Add(2*time.Second), records[2].Time)
}

func TestParse_KeepEmpty(t *testing.T) {
	require := require.New(t)

	start := time.Date(2020, 6, 1, 8, 0, 0, 0, time.Local)

	var image []byte
	image = append(image, timestampTag(start, gmc.SaveModeCPS)...)
	image = append(image, 3, emptyCell, 5)

	records, err := Parse(image, ParseOptions{})
	require.NoError(err)
	require.Len(records, 2)
	require.Equal(start.Add(time.Second), records[1].Time)

	// Kept empty cells count as zero readings and occupy a time slot.
	records, err = Parse(image, ParseOptions{KeepEmpty: true})
	require.NoError(err)
	require.Len(records, 3)
	require.Zero(records[1].CPM)
	require.Equal(start.Add(2*time.Second), records[2].Time)
}

func TestParse_CountsWithoutTimestamp(t *testing.T) {
	require := require.New(t)

	_, err := Parse([]byte{3, 5, 7}, ParseOptions{})
	require.ErrorIs(err, ErrNoTimestamp)

	_, err = Parse([]byte{emptyCell, emptyCell}, ParseOptions{})
	require.ErrorIs(err, ErrEmptyLog)

	_, err = Parse(nil, ParseOptions{})
	require.ErrorIs(err, ErrEmptyLog)
}

func TestParse_SaveModeOffMarksInvalid(t *testing.T) {
	require := require.New(t)

	start := time.Date(2020, 6, 1, 8, 0, 0, 0, time.Local)

	var image []byte
	image = append(image, timestampTag(start, gmc.SaveModeOff)...)
	image = append(image, 3)

	records, err := Parse(image, ParseOptions{})
	require.NoError(err)
	require.Len(records, 1)
	require.True(records[0].Invalid)
}
