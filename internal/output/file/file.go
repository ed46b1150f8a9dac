package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/crimson-sun/quip/internal/model"
	"github.com/crimson-sun/quip/internal/output"
)

const (
	defaultBufSize = 64 * 1024
	maxBackups     = 10
)

// Option configures a file Output.
type Option func(*Output)

// WithMaxSize sets the file size (bytes) at which rotation triggers.
// 0 (default) disables rotation.
func WithMaxSize(bytes int64) Option {
	return func(o *Output) { o.maxSize = bytes }
}

// WithFormat sets the line format. Default: output.JSON.
func WithFormat(f output.Format) Option {
	return func(o *Output) { o.format = f }
}

// Output appends prediction records to a file, one per line, with buffered
// I/O and optional size-based rotation.
type Output struct {
	w       *bufio.Writer
	f       *os.File
	mu      sync.Mutex
	path    string
	format  output.Format
	maxSize int64 // 0 = no rotation
	written int64
}

// New creates a file output that appends NDJSON records to path.
func New(path string, opts ...Option) (*Output, error) {
	o := &Output{
		path:   path,
		format: output.JSON,
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.openFile(); err != nil {
		return nil, err
	}
	return o, nil
}

// Write renders the record and appends it as a line to the file.
func (o *Output) Write(_ context.Context, record model.PredictionRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	data, err := output.FormatRecord(record, o.format)
	if err != nil {
		return fmt.Errorf("file output: %w", err)
	}
	data = append(data, '\n')

	if o.maxSize > 0 && o.written+int64(len(data)) > o.maxSize {
		if err := o.rotate(); err != nil {
			return fmt.Errorf("file output: rotate: %w", err)
		}
	}

	n, err := o.w.Write(data)
	o.written += int64(n)
	if err != nil {
		return fmt.Errorf("file output: write: %w", err)
	}
	return nil
}

// Close flushes the buffer and closes the file.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Flush(); err != nil {
		o.f.Close()
		return fmt.Errorf("file output: flush: %w", err)
	}
	return o.f.Close()
}

// openFile opens (or creates) the output file and wraps it in a bufio.Writer.
func (o *Output) openFile() error {
	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("file output: open %s: %w", o.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file output: stat %s: %w", o.path, err)
	}
	o.f = f
	o.w = bufio.NewWriterSize(f, defaultBufSize)
	o.written = info.Size()
	return nil
}

// rotate flushes and closes the current file, shifts {path}.N to
// {path}.N+1, renames the current file to {path}.1 and reopens.
func (o *Output) rotate() error {
	if err := o.w.Flush(); err != nil {
		return err
	}
	if err := o.f.Close(); err != nil {
		return err
	}

	for i := maxBackups - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", o.path, i)
		to := fmt.Sprintf("%s.%d", o.path, i+1)
		os.Rename(from, to) // missing backups are fine
	}
	if err := os.Rename(o.path, o.path+".1"); err != nil {
		return err
	}

	o.written = 0
	return o.openFile()
}
