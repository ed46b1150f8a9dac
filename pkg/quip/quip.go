package quip

import (
	"fmt"
	"io"

	"github.com/crimson-sun/quip/internal/engine"
	"github.com/crimson-sun/quip/internal/engine/classifier"
	"github.com/crimson-sun/quip/internal/engine/vectorizer"
	"github.com/crimson-sun/quip/internal/model"
	"github.com/crimson-sun/quip/internal/table"
)

// TextColumn is the column PredictTable reads when none is given, and
// PredictionColumn the one it writes.
const (
	TextColumn       = engine.DefaultTextColumn
	PredictionColumn = engine.PredictionColumn
)

// Table is a batch of rows with named columns. A nil cell is missing.
type Table = table.Table

// Record pairs an input statement with its predicted label.
type Record = model.PredictionRecord

// NewTable validates that every row has one cell per column.
func NewTable(columns []string, rows [][]any) (*Table, error) {
	return table.New(columns, rows)
}

// Quip is a statement classifier over a fitted TF-IDF vectorizer and a
// fitted classifier. Safe for concurrent use.
type Quip struct {
	engine     *engine.Engine
	classifier classifier.Classifier
}

// Info describes the loaded artifacts.
type Info struct {
	VectorizerPath string `json:"vectorizer_path"`
	ClassifierPath string `json:"classifier_path"`
	Backend        string `json:"backend"`
	Dim            int    `json:"dim"`
	Vocabulary     int    `json:"vocabulary"`
}

// New loads both artifacts and checks that the classifier accepts the
// vectorizer's output dimension. Create once, reuse across requests.
func New(opts ...Option) (*Quip, error) {
	q, _, err := load(opts...)
	return q, err
}

// NewWithInfo is New that also reports what was loaded.
func NewWithInfo(opts ...Option) (*Quip, Info, error) {
	return load(opts...)
}

func load(opts ...Option) (*Quip, Info, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	vecPath, clsPath := resolvePaths(o)

	vec, err := vectorizer.Load(vecPath)
	if err != nil {
		return nil, Info{}, fmt.Errorf("quip: %w", err)
	}

	var clsOpts []classifier.LoadOption
	if o.onnxLibrary != "" {
		clsOpts = append(clsOpts, classifier.WithONNXLibrary(o.onnxLibrary))
	}
	cls, err := classifier.Load(clsPath, clsOpts...)
	if err != nil {
		return nil, Info{}, fmt.Errorf("quip: %w", err)
	}

	if vec.Dim() != cls.Dim() {
		cls.Close()
		return nil, Info{}, fmt.Errorf("quip: vectorizer emits %d features, classifier expects %d: %w",
			vec.Dim(), cls.Dim(), model.ErrDimensionMismatch)
	}

	info := Info{
		VectorizerPath: vecPath,
		ClassifierPath: clsPath,
		Backend:        cls.Backend(),
		Dim:            vec.Dim(),
		Vocabulary:     vec.VocabularySize(),
	}
	return &Quip{engine: engine.New(vec, cls), classifier: cls}, info, nil
}

// Predict classifies a single statement.
func (q *Quip) Predict(text string) (Label, error) {
	return q.eng().PredictOne(text)
}

// PredictBatch classifies statements in one vectorizer call and one
// classifier call. The result is in input order; an empty input returns an
// empty slice.
func (q *Quip) PredictBatch(texts []string) ([]Label, error) {
	return q.eng().PredictBatch(texts)
}

// PredictRecords is PredictBatch returning (text, label) pairs.
func (q *Quip) PredictRecords(texts []string) ([]Record, error) {
	return q.eng().PredictRecords(texts)
}

// PredictTable returns a copy of t with a predicted_sentiment column added.
// column names the text column; empty means TextColumn. A missing column or
// a non-string cell fails with ErrMalformedBatchInput and no table.
func (q *Quip) PredictTable(t *Table, column string) (*Table, error) {
	return q.eng().PredictTable(t, column)
}

// PredictCSV reads a CSV table from r, classifies column and writes the
// annotated table to w.
func (q *Quip) PredictCSV(r io.Reader, w io.Writer, column string) (*Table, error) {
	in, err := table.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("quip: %w", err)
	}
	out, err := q.PredictTable(in, column)
	if err != nil {
		return nil, err
	}
	if err := table.WriteCSV(w, out); err != nil {
		return nil, fmt.Errorf("quip: %w", err)
	}
	return out, nil
}

// Labels returns the label map in index order.
func (q *Quip) Labels() []LabelInfo {
	return Labels()
}

// Ready reports whether the artifacts are loaded.
func (q *Quip) Ready() bool {
	return q.eng().Ready()
}

// Close releases classifier resources. Predictions after Close fail with
// ErrNotReady. Close must not race with in-flight predictions.
func (q *Quip) Close() error {
	if q == nil || q.classifier == nil {
		return nil
	}
	err := q.classifier.Close()
	q.engine = nil
	q.classifier = nil
	return err
}

func (q *Quip) eng() *engine.Engine {
	if q == nil {
		return nil
	}
	return q.engine
}
