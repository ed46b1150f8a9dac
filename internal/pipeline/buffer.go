package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// streamBuffer accumulates lines and flushes them as one batch on a timer
// or when full.
type streamBuffer struct {
	p       *Pipeline
	window  time.Duration
	maxSize int // 0 means unlimited

	mu      sync.Mutex
	pending []string
	timer   *time.Timer
}

func newStreamBuffer(p *Pipeline, window time.Duration, maxSize int) *streamBuffer {
	return &streamBuffer{
		p:       p,
		window:  window,
		maxSize: maxSize,
	}
}

// add appends a line. The first line of a batch starts the flush timer.
// Returns true if the buffer is full and needs flushing.
func (b *streamBuffer) add(line string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, line)
	if len(b.pending) == 1 {
		b.timer = time.NewTimer(b.window)
	}
	return b.maxSize > 0 && len(b.pending) >= b.maxSize
}

// flushCh returns the timer's channel, or nil if no timer is active.
func (b *streamBuffer) flushCh() <-chan time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer == nil {
		return nil
	}
	return b.timer.C
}

// flush classifies and writes all pending lines.
func (b *streamBuffer) flush(ctx context.Context) (int, error) {
	b.mu.Lock()
	lines := b.pending
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	if len(lines) == 0 {
		return 0, nil
	}

	records, err := b.p.predictor.PredictRecords(lines)
	if err != nil {
		return 0, fmt.Errorf("pipeline predict: %w", err)
	}
	return b.p.write(ctx, records)
}
