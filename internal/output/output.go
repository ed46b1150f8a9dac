package output

import (
	"context"

	"github.com/crimson-sun/quip/internal/model"
)

// Output defines the interface for prediction record destinations.
type Output interface {
	Write(ctx context.Context, record model.PredictionRecord) error
	Close() error
}
