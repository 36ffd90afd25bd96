package marc

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
)

var (
	// ErrNotFoundLocal is returned by Open when the database file is missing.
	// It also matches os.ErrNotExist.
	ErrNotFoundLocal = errors.New("marc database not found")

	// ErrRecordNotFound is returned by Get for an unknown id.
	ErrRecordNotFound = errors.New("marc record not found")
)

const schema = `
	CREATE TABLE IF NOT EXISTS records (
		id  TEXT PRIMARY KEY,
		xml TEXT NOT NULL
	)
`

// Store is a SQLite database of MARCXML records keyed by volume id.
type Store struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// Open opens an existing database.
func Open(dbPath string) (*Store, error) {
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFoundLocal, dbPath, os.ErrNotExist)
	}
	return open(dbPath)
}

// Create opens the database at dbPath, creating it if necessary.
func Create(dbPath string) (*Store, error) {
	return open(dbPath)
}

func open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating records table: %w", err)
	}

	return &Store{
		db:     db,
		path:   dbPath,
		logger: log.With().Str("component", "marc-store").Str("path", dbPath).Logger(),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Put stores the MARCXML of one record, replacing any previous version.
func (s *Store) Put(ctx context.Context, id, recordXML string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("marc: record id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (id, xml) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET xml = excluded.xml`,
		id, recordXML)
	if err != nil {
		return fmt.Errorf("storing record %s: %w", id, err)
	}
	return nil
}

// Get returns the record stored under id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT xml FROM records WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading record %s: %w", id, err)
	}
	return ParseXML([]byte(raw))
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// Records iterates over every stored record in id order. The iterator must
// be drained or closed.
func (s *Store) Records(ctx context.Context) (*RecordIterator, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, xml FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	return &RecordIterator{rows: rows}, nil
}

// ImportZip stores every MARCXML entry of a zip bundle, as returned by the
// proxy's MARC endpoint. Entries that are not XML are skipped. It returns the
// number of records stored.
func (s *Store) ImportZip(ctx context.Context, data []byte) (int, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("reading marc bundle: %w", err)
	}

	stored := 0
	for _, f := range zr.File {
		if !strings.EqualFold(path.Ext(f.Name), ".xml") {
			continue
		}
		raw, err := readEntry(f)
		if err != nil {
			return stored, err
		}
		records, err := ParseCollection(raw)
		if err != nil {
			s.logger.Warn().Err(err).Str("entry", f.Name).Msg("Skipping unparsable entry")
			continue
		}
		for _, r := range records {
			out, err := r.Marshal()
			if err != nil {
				return stored, err
			}
			id := r.ID()
			if id == "" {
				id = strings.TrimSuffix(path.Base(f.Name), path.Ext(f.Name))
			}
			if err := s.Put(ctx, id, string(out)); err != nil {
				return stored, err
			}
			stored++
		}
	}

	s.logger.Debug().Int("records", stored).Msg("Imported MARC bundle")
	return stored, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return data, nil
}

// RecordIterator yields stored records. Next returns iterator.Done after the
// last one.
type RecordIterator struct {
	rows *sql.Rows
	err  error
}

// Next returns the next record.
func (it *RecordIterator) Next(ctx context.Context) (*Record, error) {
	if it.err != nil {
		return nil, it.err
	}
	if err := ctx.Err(); err != nil {
		it.finish(err)
		return nil, err
	}

	if !it.rows.Next() {
		err := it.rows.Err()
		if err == nil {
			err = iterator.Done
		}
		it.finish(err)
		return nil, err
	}

	var id, raw string
	if err := it.rows.Scan(&id, &raw); err != nil {
		err = fmt.Errorf("scanning record: %w", err)
		it.finish(err)
		return nil, err
	}

	r, err := ParseXML([]byte(raw))
	if err != nil {
		err = fmt.Errorf("record %s: %w", id, err)
		it.finish(err)
		return nil, err
	}
	return r, nil
}

// Close releases the underlying rows.
func (it *RecordIterator) Close() error {
	if it.err == nil {
		it.err = iterator.Done
	}
	return it.rows.Close()
}

func (it *RecordIterator) finish(err error) {
	it.err = err
	it.rows.Close()
}
