package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/crimson-sun/quip/internal/model"
	"github.com/crimson-sun/quip/internal/output"
)

const (
	defaultWindow   = 200 * time.Millisecond
	defaultMaxBatch = 512
)

// Predictor labels a batch of statements in input order.
type Predictor interface {
	PredictRecords(texts []string) ([]model.PredictionRecord, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWindow sets how long Stream waits for more lines before flushing a
// partial batch. Default: 200ms.
func WithWindow(d time.Duration) Option {
	return func(p *Pipeline) { p.window = d }
}

// WithMaxBatch caps the lines per streamed batch. Default: 512.
func WithMaxBatch(n int) Option {
	return func(p *Pipeline) { p.maxBatch = n }
}

// Pipeline connects a predictor to an output.
type Pipeline struct {
	predictor Predictor
	output    output.Output
	window    time.Duration
	maxBatch  int
}

// New creates a Pipeline from the given components.
func New(pred Predictor, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		predictor: pred,
		output:    out,
		window:    defaultWindow,
		maxBatch:  defaultMaxBatch,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run classifies texts in one batch and writes every record in input
// order. It returns the number of records written.
func (p *Pipeline) Run(ctx context.Context, texts []string) (int, error) {
	records, err := p.predictor.PredictRecords(texts)
	if err != nil {
		return 0, fmt.Errorf("pipeline predict: %w", err)
	}
	return p.write(ctx, records)
}

// Stream reads lines until the channel closes or ctx is cancelled,
// classifying them in micro-batches. Output order matches input order.
// Pending lines are flushed before returning.
func (p *Pipeline) Stream(ctx context.Context, lines <-chan string) (int, error) {
	buf := newStreamBuffer(p, p.window, p.maxBatch)
	total := 0
	flush := func(ctx context.Context) error {
		n, err := buf.flush(ctx)
		total += n
		return err
	}

	for {
		select {
		case <-ctx.Done():
			if err := flush(context.WithoutCancel(ctx)); err != nil {
				return total, err
			}
			return total, ctx.Err()
		case <-buf.flushCh():
			if err := flush(ctx); err != nil {
				return total, err
			}
		case line, ok := <-lines:
			if !ok {
				err := flush(ctx)
				return total, err
			}
			if buf.add(line) {
				if err := flush(ctx); err != nil {
					return total, err
				}
			}
		}
	}
}

func (p *Pipeline) write(ctx context.Context, records []model.PredictionRecord) (int, error) {
	for i, r := range records {
		if err := p.output.Write(ctx, r); err != nil {
			return i, fmt.Errorf("pipeline output: %w", err)
		}
	}
	return len(records), nil
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.output.Close()
}
