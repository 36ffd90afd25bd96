package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/iterator"
)

type lineResult struct {
	line string
	err  error
}

// LineSource yields trimmed, non-blank lines of a reader. Reads run on a
// helper goroutine so that Next honours context cancellation even while the
// underlying reader (a terminal) blocks; a read abandoned that way is left
// pending until the reader returns. Close stops the helper goroutine.
type LineSource struct {
	scanner *bufio.Scanner
	out     io.Writer
	prompt  string

	started bool
	stopped bool
	reqs    chan struct{}
	results chan lineResult
	done    chan struct{}
	err     error
}

// NewLineSource reads identifiers from r.
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{
		scanner: bufio.NewScanner(r),
		reqs:    make(chan struct{}),
		results: make(chan lineResult, 1),
		done:    make(chan struct{}),
	}
}

// WithPrompt writes prompt to w before every line is read.
func (s *LineSource) WithPrompt(w io.Writer, prompt string) *LineSource {
	s.out = w
	s.prompt = prompt
	return s
}

// Next returns the next non-blank line, trimmed, or iterator.Done at EOF.
func (s *LineSource) Next(ctx context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if !s.started {
		s.started = true
		go s.readLoop()
	}

	for {
		line, err := s.read(ctx)
		if err != nil {
			// A cancelled read can be resumed by a later call.
			if err != ctx.Err() {
				s.err = err
				s.stop()
			}
			return "", err
		}
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
}

// Close ends the source: later calls to Next return iterator.Done. The helper
// goroutine exits at once, or when a read already in progress returns.
// Close does not close the underlying reader.
func (s *LineSource) Close() error {
	if s.err == nil {
		s.err = iterator.Done
	}
	s.stop()
	return nil
}

func (s *LineSource) stop() {
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.reqs)
	if !s.started {
		close(s.done)
	}
}

func (s *LineSource) read(ctx context.Context) (string, error) {
	select {
	case s.reqs <- struct{}{}:
	case r := <-s.results:
		// Result of a read abandoned by an earlier cancellation.
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case r := <-s.results:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *LineSource) readLoop() {
	defer close(s.done)
	for range s.reqs {
		if s.out != nil {
			fmt.Fprint(s.out, s.prompt)
		}
		if s.scanner.Scan() {
			s.results <- lineResult{line: s.scanner.Text()}
			continue
		}
		err := s.scanner.Err()
		if err == nil {
			err = iterator.Done
		} else {
			err = fmt.Errorf("read identifiers: %w", err)
		}
		s.results <- lineResult{err: err}
		return
	}
}
