package history

import (
	"context"
	"time"

	"github.com/gmcdev/go-gmc/gmc"
	"github.com/gmcdev/go-gmc/internal/pool"
	"github.com/gmcdev/go-gmc/logger"
)

// interPageWait is the pause between flash page reads; the device needs
// a breather after serving a full page.
const interPageWait = 100 * time.Millisecond

// emptyStopThreshold is how many consecutive all-0xFF bytes end an
// incremental read. Two default pages of empty cells past the last
// record mean the rest of the flash is unused.
const emptyStopThreshold = 2 * gmc.DefaultPageSize

// ReadOptions control Read behavior.
type ReadOptions struct {
	// Full reads the whole flash instead of stopping at the first long
	// run of empty cells.
	Full bool
	// PageSize overrides the per-request read length. Zero means the
	// profile's page size.
	PageSize int
	Logger   logger.Logger
}

// Read downloads the device flash log page by page and returns the raw
// image. Unless Full is set it stops early once a long run of empty
// cells shows the rest of the flash is unused.
func Read(ctx context.Context, s *gmc.Session, opts ReadOptions) ([]byte, error) {
	prof := s.Profile()

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = prof.PageSize
	}
	if pageSize <= 0 {
		pageSize = gmc.DefaultPageSize
	}

	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	// Stray bytes on the line would shift every page.
	if _, err := s.Drain(ctx); err != nil {
		return nil, err
	}

	image := make([]byte, 0, prof.FlashSize)
	emptyRun := 0

	for addr := uint32(0); addr < uint32(prof.FlashSize); addr += uint32(pageSize) {
		length := pageSize
		if remaining := prof.FlashSize - int(addr); remaining < length {
			length = remaining
		}

		page, err := s.ReadFlash(ctx, addr, length)
		if err != nil {
			return nil, err
		}

		image = append(image, page...)

		if !opts.Full {
			emptyRun = trailingEmptyRun(page, emptyRun)
			if emptyRun >= emptyStopThreshold {
				log.Debug("flash read stopped at empty region",
					"addr", addr+uint32(length), "bytes", len(image))
				break
			}
		}

		if err := pool.Sleep(ctx, interPageWait); err != nil {
			return nil, err
		}
	}

	// The device sometimes trails extra bytes after a page; clear them so
	// the next framed exchange is not misaligned.
	if _, err := s.Drain(ctx); err != nil {
		return nil, err
	}

	log.Info("flash log read", "bytes", len(image))

	return image, nil
}

// Download reads the flash log and parses it in one step.
func Download(ctx context.Context, s *gmc.Session, opts ReadOptions) ([]Record, error) {
	image, err := Read(ctx, s, opts)
	if err != nil {
		return nil, err
	}

	return Parse(image, ParseOptions{})
}

// trailingEmptyRun returns the run length of 0xFF bytes at the end of
// page, continuing run when the whole page is empty.
func trailingEmptyRun(page []byte, run int) int {
	n := 0
	for i := len(page) - 1; i >= 0 && page[i] == emptyCell; i-- {
		n++
	}
	if n == len(page) {
		return run + n
	}
	return n
}
