package classifier

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/crimson-sun/quip/internal/model"
)

// Linear is a one-vs-rest linear model such as a linear SVM. The predicted
// class is classes[argmax(coef·x + intercept)]. A single coefficient row is
// the binary case: classes[1] when the score is positive, classes[0]
// otherwise. Linear is immutable and safe for concurrent use.
type Linear struct {
	classes   []model.ClassIndex
	coef      []float32 // row-major [rows, dim]
	intercept []float32
	rows      int
	dim       int
}

// LinearArtifact is the JSON form of a linear model.
type LinearArtifact struct {
	Classes   []int       `json:"classes"`
	Coef      [][]float32 `json:"coef"`
	Intercept []float32   `json:"intercept"`
}

// LoadLinearJSON reads a LinearArtifact from a JSON file.
func LoadLinearJSON(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	var a LinearArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("classifier: parse %s: %w", path, err)
	}
	return NewLinear(a)
}

// NewLinear validates an artifact and builds a Linear model.
func NewLinear(a LinearArtifact) (*Linear, error) {
	rows := len(a.Coef)
	if rows == 0 {
		return nil, fmt.Errorf("classifier: no coefficient rows")
	}
	dim := len(a.Coef[0])
	if dim == 0 {
		return nil, fmt.Errorf("classifier: empty coefficient row")
	}

	flat := make([]float32, 0, rows*dim)
	for i, row := range a.Coef {
		if len(row) != dim {
			return nil, fmt.Errorf("classifier: coef row %d has %d columns, want %d", i, len(row), dim)
		}
		flat = append(flat, row...)
	}

	return newLinear(a.Classes, flat, a.Intercept, rows, dim)
}

func newLinear(classes []int, coef, intercept []float32, rows, dim int) (*Linear, error) {
	if len(intercept) != rows {
		return nil, fmt.Errorf("classifier: %d intercepts for %d coefficient rows", len(intercept), rows)
	}

	wantClasses := rows
	if rows == 1 {
		wantClasses = 2
	}
	if classes == nil {
		classes = make([]int, wantClasses)
		for i := range classes {
			classes[i] = i
		}
	}
	if len(classes) != wantClasses {
		return nil, fmt.Errorf("classifier: %d classes for %d coefficient rows", len(classes), rows)
	}

	idx := make([]model.ClassIndex, len(classes))
	for i, c := range classes {
		idx[i] = model.ClassIndex(c)
	}

	return &Linear{
		classes:   idx,
		coef:      coef,
		intercept: append([]float32(nil), intercept...),
		rows:      rows,
		dim:       dim,
	}, nil
}

// Dim returns the trained input dimension.
func (m *Linear) Dim() int { return m.dim }

// Backend returns "linear".
func (m *Linear) Backend() string { return "linear" }

// Predict classifies every vector. Any vector of the wrong dimension fails
// the whole call with model.ErrDimensionMismatch.
func (m *Linear) Predict(vectors []model.FeatureVector) ([]model.ClassIndex, error) {
	if err := checkDims(vectors, m.dim); err != nil {
		return nil, err
	}
	out := make([]model.ClassIndex, len(vectors))
	for i, v := range vectors {
		out[i] = m.predictOne(v)
	}
	return out, nil
}

func (m *Linear) predictOne(v model.FeatureVector) model.ClassIndex {
	scores := m.scores(v)
	if m.rows == 1 {
		if scores[0] > 0 {
			return m.classes[1]
		}
		return m.classes[0]
	}
	best := 0
	for r := 1; r < m.rows; r++ {
		if scores[r] > scores[best] {
			best = r
		}
	}
	return m.classes[best]
}

func (m *Linear) scores(v model.FeatureVector) []float64 {
	out := make([]float64, m.rows)
	for r := 0; r < m.rows; r++ {
		row := m.coef[r*m.dim : (r+1)*m.dim]
		sum := float64(m.intercept[r])
		for j, col := range v.Indices {
			sum += float64(row[col]) * float64(v.Values[j])
		}
		out[r] = sum
	}
	return out
}

// Close is a no-op; Linear holds no external resources.
func (m *Linear) Close() error { return nil }
