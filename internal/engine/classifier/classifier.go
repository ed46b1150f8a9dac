package classifier

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crimson-sun/quip/internal/model"
)

// Classifier maps feature vectors to class indices.
type Classifier interface {
	// Predict returns one class index per vector, in input order.
	Predict(vectors []model.FeatureVector) ([]model.ClassIndex, error)
	// Dim returns the input dimension the model was trained with.
	Dim() int
	// Backend names the model implementation, e.g. "linear" or "onnx".
	Backend() string
	Close() error
}

type loadOptions struct {
	onnxLib string
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithONNXLibrary sets the ONNX Runtime shared library path. By default the
// library is expected next to the model as libonnxruntime.so.
func WithONNXLibrary(path string) LoadOption {
	return func(o *loadOptions) { o.onnxLib = path }
}

// Load reads a classifier artifact, selecting the backend by file
// extension: .json and .safetensors load a linear model, .onnx an ONNX
// Runtime session.
func Load(path string, opts ...LoadOption) (Classifier, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	var (
		c   Classifier
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		c, err = asClassifier(LoadLinearJSON(path))
	case ".safetensors":
		c, err = asClassifier(LoadLinearSafetensors(path))
	case ".onnx":
		var m *ONNX
		if m, err = LoadONNX(path, o.onnxLib); err == nil {
			c = m
		}
	default:
		err = fmt.Errorf("classifier: unsupported artifact extension %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// asClassifier avoids wrapping a nil *Linear in a non-nil interface.
func asClassifier(m *Linear, err error) (Classifier, error) {
	if err != nil {
		return nil, err
	}
	return m, nil
}

// checkDims rejects any vector whose dimension differs from dim.
func checkDims(vectors []model.FeatureVector, dim int) error {
	for i, v := range vectors {
		if v.Dim != dim {
			return fmt.Errorf("classifier: vector %d has dimension %d, model expects %d: %w",
				i, v.Dim, dim, model.ErrDimensionMismatch)
		}
	}
	return nil
}
