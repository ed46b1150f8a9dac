package vectorizer

import (
	"fmt"
	"math"
	"sort"

	"github.com/crimson-sun/quip/internal/model"
)

// Vectorizer turns raw text into sparse feature vectors.
type Vectorizer interface {
	// Transform returns one vector per text, in input order.
	Transform(texts []string) ([]model.FeatureVector, error)
	// Dim returns the fixed output dimension.
	Dim() int
}

// TFIDF is a pre-fitted term-frequency / inverse-document-frequency
// vectorizer. It is immutable after Load and safe for concurrent use.
type TFIDF struct {
	an     *analyzer
	vocab  map[string]int32
	idf    []float64
	dim    int
	norm   string
	useIDF bool
	subTF  bool
	binary bool
	nTerms int
}

// Dim returns the feature dimension fixed at load time.
func (v *TFIDF) Dim() int {
	if v == nil {
		return 0
	}
	return v.dim
}

// VocabularySize returns the number of known terms.
func (v *TFIDF) VocabularySize() int {
	if v == nil {
		return 0
	}
	return v.nTerms
}

// Transform vectorizes each text independently. Terms absent from the
// vocabulary are dropped. An unloaded vectorizer returns model.ErrNotReady.
func (v *TFIDF) Transform(texts []string) ([]model.FeatureVector, error) {
	if v == nil || v.vocab == nil {
		return nil, fmt.Errorf("vectorizer: %w", model.ErrNotReady)
	}
	out := make([]model.FeatureVector, len(texts))
	for i, text := range texts {
		out[i] = v.transformOne(text)
	}
	return out, nil
}

func (v *TFIDF) transformOne(text string) model.FeatureVector {
	counts := make(map[int32]int)
	for _, term := range v.an.analyze(text) {
		if col, ok := v.vocab[term]; ok {
			counts[col]++
		}
	}

	indices := make([]int32, 0, len(counts))
	for col := range counts {
		indices = append(indices, col)
	}
	sort.Slice(indices, func(a, b int) bool { return indices[a] < indices[b] })

	weights := make([]float64, len(indices))
	for i, col := range indices {
		weights[i] = v.weight(col, counts[col])
	}
	normalize(weights, v.norm)

	values := make([]float32, len(weights))
	for i, w := range weights {
		values[i] = float32(w)
	}
	return model.FeatureVector{Dim: v.dim, Indices: indices, Values: values}
}

// weight computes the un-normalized tf-idf weight for one column.
func (v *TFIDF) weight(col int32, count int) float64 {
	tf := float64(count)
	if v.binary {
		tf = 1
	}
	if v.subTF {
		tf = 1 + math.Log(tf)
	}
	if v.useIDF {
		tf *= v.idf[col]
	}
	return tf
}

// normalize scales w in place to unit l1 or l2 norm. Zero vectors and
// norm "" are left untouched.
func normalize(w []float64, norm string) {
	var total float64
	switch norm {
	case normL2:
		for _, x := range w {
			total += x * x
		}
		total = math.Sqrt(total)
	case normL1:
		for _, x := range w {
			total += math.Abs(x)
		}
	default:
		return
	}
	if total == 0 {
		return
	}
	for i := range w {
		w[i] /= total
	}
}
