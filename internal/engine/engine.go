package engine

import (
	"fmt"

	"github.com/crimson-sun/quip/internal/engine/classifier"
	"github.com/crimson-sun/quip/internal/engine/dedup"
	"github.com/crimson-sun/quip/internal/engine/labels"
	"github.com/crimson-sun/quip/internal/engine/vectorizer"
	"github.com/crimson-sun/quip/internal/model"
	"github.com/crimson-sun/quip/internal/table"
)

// DefaultTextColumn and PredictionColumn name the batch table columns read
// and written by PredictTable.
const (
	DefaultTextColumn = "text"
	PredictionColumn  = "predicted_sentiment"
)

var (
	ErrNotReady            = model.ErrNotReady
	ErrDimensionMismatch   = model.ErrDimensionMismatch
	ErrMalformedBatchInput = model.ErrMalformedBatchInput
)

// Stage identifies the pipeline step that produced an error.
type Stage string

const (
	StageVectorize Stage = "vectorize"
	StageClassify  Stage = "classify"
)

// StageError annotates a vectorizer or classifier failure with its stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Engine orchestrates the vectorize → classify → resolve pipeline. It holds
// no mutable state and is safe for concurrent use once constructed.
type Engine struct {
	vectorizer vectorizer.Vectorizer
	classifier classifier.Classifier
}

// New creates an Engine over loaded components. An Engine built with a nil
// component is not ready and fails every prediction with ErrNotReady.
func New(vec vectorizer.Vectorizer, cls classifier.Classifier) *Engine {
	return &Engine{vectorizer: vec, classifier: cls}
}

// Ready reports whether both components are loaded.
func (e *Engine) Ready() bool {
	return e != nil && e.vectorizer != nil && e.classifier != nil
}

// PredictOne classifies a single statement. The empty string is a valid input.
func (e *Engine) PredictOne(text string) (model.Label, error) {
	out, err := e.PredictBatch([]string{text})
	if err != nil {
		return "", err
	}
	return out[0], nil
}

// PredictBatch classifies texts with exactly one vectorize call and one
// classify call. Repeated texts are scored once. The result has one label
// per text, in input order.
func (e *Engine) PredictBatch(texts []string) ([]model.Label, error) {
	if !e.Ready() {
		return nil, ErrNotReady
	}
	if len(texts) == 0 {
		return []model.Label{}, nil
	}

	set := dedup.Texts(texts)
	vectors, err := e.vectorizer.Transform(set.Unique)
	if err != nil {
		return nil, &StageError{Stage: StageVectorize, Err: err}
	}
	if len(vectors) != len(set.Unique) {
		return nil, &StageError{Stage: StageVectorize,
			Err: fmt.Errorf("got %d vectors for %d texts", len(vectors), len(set.Unique))}
	}

	indices, err := e.classifier.Predict(vectors)
	if err != nil {
		return nil, &StageError{Stage: StageClassify, Err: err}
	}
	if len(indices) != len(vectors) {
		return nil, &StageError{Stage: StageClassify,
			Err: fmt.Errorf("got %d predictions for %d vectors", len(indices), len(vectors))}
	}

	resolved := labels.ResolveAll(indices)
	if set.Duplicates() == 0 {
		return resolved, nil
	}
	return dedup.Expand(set, resolved), nil
}

// PredictRecords is PredictBatch returning (text, label) pairs.
func (e *Engine) PredictRecords(texts []string) ([]model.PredictionRecord, error) {
	out, err := e.PredictBatch(texts)
	if err != nil {
		return nil, err
	}
	records := make([]model.PredictionRecord, len(texts))
	for i, text := range texts {
		records[i] = model.PredictionRecord{Text: text, Label: out[i]}
	}
	return records, nil
}

// PredictTable classifies the named text column and returns a copy of t
// with a PredictionColumn appended (or overwritten). A missing column or a
// non-string cell fails the whole call with ErrMalformedBatchInput.
func (e *Engine) PredictTable(t *table.Table, column string) (*table.Table, error) {
	if !e.Ready() {
		return nil, ErrNotReady
	}
	if t == nil {
		return nil, fmt.Errorf("nil table: %w", ErrMalformedBatchInput)
	}
	if column == "" {
		column = DefaultTextColumn
	}

	texts, err := t.Strings(column)
	if err != nil {
		return nil, err
	}
	out, err := e.PredictBatch(texts)
	if err != nil {
		return nil, err
	}

	values := make([]string, len(out))
	for i, l := range out {
		values[i] = string(l)
	}
	return t.WithColumn(PredictionColumn, values)
}

// Dim returns the feature dimension shared by the vectorizer and classifier.
func (e *Engine) Dim() int {
	if !e.Ready() {
		return 0
	}
	return e.vectorizer.Dim()
}

// Backend names the classifier implementation.
func (e *Engine) Backend() string {
	if !e.Ready() {
		return ""
	}
	return e.classifier.Backend()
}
