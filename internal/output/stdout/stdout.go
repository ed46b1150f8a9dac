package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/crimson-sun/quip/internal/model"
	"github.com/crimson-sun/quip/internal/output"
)

// Output writes prediction records to stdout, one per line.
type Output struct {
	w      io.Writer
	enc    *json.Encoder
	format output.Format
}

// New creates a stdout Output. pretty indents JSON records.
func New(format output.Format, pretty bool) *Output {
	return NewWriter(os.Stdout, format, pretty)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, format output.Format, pretty bool) *Output {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &Output{w: w, enc: enc, format: format}
}

func (o *Output) Write(_ context.Context, record model.PredictionRecord) error {
	if o.format == output.JSON {
		if err := o.enc.Encode(record); err != nil {
			return fmt.Errorf("stdout output: %w", err)
		}
		return nil
	}
	line, err := output.FormatRecord(record, o.format)
	if err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	if _, err := fmt.Fprintf(o.w, "%s\n", line); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
