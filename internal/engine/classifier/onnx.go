package classifier

import (
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/crimson-sun/quip/internal/model"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Safe to call multiple
// times; only the first call has any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNX runs a classifier exported to ONNX with one float input of shape
// [batch, dim] and an int64 label output of shape [batch].
type ONNX struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	dim        int
}

// LoadONNX loads the model and creates an inference session. libPath may be
// empty, in which case libonnxruntime.so is expected next to the model.
func LoadONNX(modelPath, libPath string) (*ONNX, error) {
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so")
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}

	inputName, dim, err := validateInput(inputs)
	if err != nil {
		return nil, err
	}
	outputName, err := findLabelOutput(outputs)
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(4)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputName},
		[]string{outputName},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &ONNX{
		session:    session,
		inputName:  inputName,
		outputName: outputName,
		dim:        dim,
	}, nil
}

// validateInput expects a single float tensor input with a fixed feature
// dimension.
func validateInput(inputs []ort.InputOutputInfo) (string, int, error) {
	if len(inputs) != 1 {
		return "", 0, fmt.Errorf("onnx: expected 1 model input, got %d", len(inputs))
	}
	in := inputs[0]
	if in.DataType != ort.TensorElementDataTypeFloat {
		return "", 0, fmt.Errorf("onnx: input %q must be float, got %v", in.Name, in.DataType)
	}
	if len(in.Dimensions) != 2 {
		return "", 0, fmt.Errorf("onnx: expected 2D input tensor, got %v", in.Dimensions)
	}
	dim := in.Dimensions[1]
	if dim <= 0 {
		return "", 0, fmt.Errorf("onnx: input %q has dynamic feature dimension", in.Name)
	}
	return in.Name, int(dim), nil
}

// findLabelOutput picks the int64 label output. Exported SVMs also emit a
// score tensor which is ignored.
func findLabelOutput(outputs []ort.InputOutputInfo) (string, error) {
	for _, out := range outputs {
		if out.DataType == ort.TensorElementDataTypeInt64 {
			return out.Name, nil
		}
	}
	return "", fmt.Errorf("onnx: model has no int64 label output")
}

// Dim returns the model's input dimension.
func (m *ONNX) Dim() int { return m.dim }

// Backend returns "onnx".
func (m *ONNX) Backend() string { return "onnx" }

// Predict densifies the batch and runs a single inference call.
func (m *ONNX) Predict(vectors []model.FeatureVector) ([]model.ClassIndex, error) {
	if err := checkDims(vectors, m.dim); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return []model.ClassIndex{}, nil
	}

	batch := int64(len(vectors))
	dense := make([]float32, int(batch)*m.dim)
	for i, v := range vectors {
		copy(dense[i*m.dim:(i+1)*m.dim], v.Dense())
	}

	tIn, err := ort.NewTensor(ort.NewShape(batch, int64(m.dim)), dense)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer tIn.Destroy()

	tOut, err := ort.NewEmptyTensor[int64](ort.NewShape(batch))
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer tOut.Destroy()

	if err := m.session.Run([]ort.Value{tIn}, []ort.Value{tOut}); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}

	labels := tOut.GetData()
	out := make([]model.ClassIndex, len(labels))
	for i, l := range labels {
		out[i] = model.ClassIndex(l)
	}
	return out, nil
}

// Close releases the ONNX session resources.
func (m *ONNX) Close() error {
	return m.session.Destroy()
}
