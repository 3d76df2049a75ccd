// Package recorder persists per-node raw data during a gathering run.
package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/picogrid/v2v-simulations/pkg/node"
)

// ErrStreamClosed is returned when writing to or closing a stream that has
// already been closed.
var ErrStreamClosed = errors.New("stream already closed")

// Header is the first row of every raw data file.
var Header = []string{"x", "y", "bsm_x", "bsm_y"}

// FileName returns the raw data file name for a node.
func FileName(id node.ID) string {
	return fmt.Sprintf("Node_%d.csv", id)
}

// CategoryDir returns the directory holding raw files of category c.
func CategoryDir(root string, c node.Category) string {
	return filepath.Join(root, c.String())
}

// Sink opens one CSV stream per node under <dir>/<category>/. It implements
// node.StreamOpener.
type Sink struct {
	dir string

	mu     sync.Mutex
	opened int
	open   int
}

// NewSink creates the category directories under dir.
func NewSink(dir string) (*Sink, error) {
	for _, c := range node.Categories() {
		if err := os.MkdirAll(CategoryDir(dir, c), 0755); err != nil {
			return nil, fmt.Errorf("create raw data directory: %w", err)
		}
	}
	return &Sink{dir: dir}, nil
}

// Dir returns the root directory of the sink.
func (s *Sink) Dir() string { return s.dir }

// Open creates the node's file and writes the header row.
func (s *Sink) Open(id node.ID, c node.Category) (node.Stream, error) {
	path := filepath.Join(CategoryDir(s.dir, c), FileName(id))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header to %s: %w", path, err)
	}

	s.mu.Lock()
	s.opened++
	s.open++
	s.mu.Unlock()

	return &CSVStream{path: path, file: f, w: w, sink: s}, nil
}

// Opened returns the number of streams ever opened.
func (s *Sink) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// OpenStreams returns the number of streams not yet closed.
func (s *Sink) OpenStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Sink) release() {
	s.mu.Lock()
	s.open--
	s.mu.Unlock()
}

// CSVStream writes node rows to a single CSV file.
type CSVStream struct {
	path   string
	file   *os.File
	w      *csv.Writer
	sink   *Sink
	closed bool
}

// Path returns the file backing the stream.
func (c *CSVStream) Path() string { return c.path }

// Write appends one row.
func (c *CSVStream) Write(r node.Row) error {
	if c.closed {
		return ErrStreamClosed
	}
	record := []string{
		formatFloat(r.Position.X),
		formatFloat(r.Position.Y),
		formatFloat(r.Beacon.X),
		formatFloat(r.Beacon.Y),
	}
	if err := c.w.Write(record); err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	return nil
}

// Close flushes buffered rows and closes the file.
func (c *CSVStream) Close() error {
	if c.closed {
		return ErrStreamClosed
	}
	c.closed = true
	if c.sink != nil {
		c.sink.release()
	}

	c.w.Flush()
	flushErr := c.w.Error()
	closeErr := c.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", c.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", c.path, closeErr)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
