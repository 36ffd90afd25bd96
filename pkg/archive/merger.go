// Package archive merges zip payloads into one output archive.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("archive: merger closed")

// Merger copies the entries of many zip payloads into a single zip.
// An entry name is written once; later duplicates are skipped.
type Merger struct {
	zw     *zip.Writer
	seen   map[string]struct{}
	closed bool
	logger zerolog.Logger
}

// NewMerger writes the merged archive to w. Close must be called to flush
// the central directory.
func NewMerger(w io.Writer) *Merger {
	return &Merger{
		zw:     zip.NewWriter(w),
		seen:   make(map[string]struct{}),
		logger: log.With().Str("component", "archive").Logger(),
	}
}

// Add copies every entry of the zip archive data and returns how many were
// written.
func (m *Merger) Add(data []byte) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("archive: read payload: %w", err)
	}

	written := 0
	for _, f := range zr.File {
		if _, dup := m.seen[f.Name]; dup {
			m.logger.Debug().Str("entry", f.Name).Msg("Skipping duplicate entry")
			continue
		}
		if err := m.copyEntry(f); err != nil {
			return written, err
		}
		m.seen[f.Name] = struct{}{}
		written++
	}
	return written, nil
}

// copyEntry copies f without recompressing it.
func (m *Merger) copyEntry(f *zip.File) error {
	if err := m.zw.Copy(f); err != nil {
		return fmt.Errorf("archive: copy %s: %w", f.Name, err)
	}
	return nil
}

// Len returns the number of entries written so far.
func (m *Merger) Len() int {
	return len(m.seen)
}

// Close finishes the archive. It does not close the underlying writer.
func (m *Merger) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.zw.Close()
}
