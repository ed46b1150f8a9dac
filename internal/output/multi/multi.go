package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/quip/internal/model"
	"github.com/crimson-sun/quip/internal/output"
)

// Multi fans out records to multiple output.Output implementations.
// If one output fails, the remaining outputs still receive the record.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi that fans out to the given outputs.
func New(outputs ...output.Output) *Multi {
	return &Multi{outputs: outputs}
}

// Write delivers the record to every wrapped output in order and joins
// their errors.
func (m *Multi) Write(ctx context.Context, record model.PredictionRecord) error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Write(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close calls Close on every wrapped output, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
