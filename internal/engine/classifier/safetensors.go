package classifier

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// tensorMeta is one entry of a safetensors header.
type tensorMeta struct {
	Dtype       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// LoadLinearSafetensors reads a linear model from a safetensors file with
// F32 tensors "coef" [rows, dim] and "intercept" [rows]. Class indices are
// taken from the "classes" metadata entry (comma-separated integers) and
// default to 0..n-1.
func LoadLinearSafetensors(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("classifier: safetensors file too small: %d bytes", len(data))
	}

	// 8-byte LE header length, then a JSON header, then raw tensor bytes.
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("classifier: header length %d exceeds file size", headerLen)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("classifier: failed to parse safetensors header: %w", err)
	}
	body := data[8+headerLen:]

	coef, coefShape, err := readF32(header, body, "coef")
	if err != nil {
		return nil, err
	}
	if len(coefShape) != 2 {
		return nil, fmt.Errorf("classifier: expected 2D coef tensor, got shape %v", coefShape)
	}
	intercept, _, err := readF32(header, body, "intercept")
	if err != nil {
		return nil, err
	}

	classes, err := parseClassesMeta(header)
	if err != nil {
		return nil, err
	}

	rows, dim := coefShape[0], coefShape[1]
	if rows == 0 || dim == 0 {
		return nil, fmt.Errorf("classifier: empty coef tensor %v", coefShape)
	}
	return newLinear(classes, coef, intercept, rows, dim)
}

// readF32 decodes a named F32 tensor from the safetensors body.
func readF32(header map[string]json.RawMessage, body []byte, name string) ([]float32, []int, error) {
	raw, ok := header[name]
	if !ok {
		return nil, nil, fmt.Errorf("classifier: tensor %q not found in header", name)
	}
	var meta tensorMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, nil, fmt.Errorf("classifier: failed to parse %q metadata: %w", name, err)
	}
	if meta.Dtype != "F32" {
		return nil, nil, fmt.Errorf("classifier: tensor %q: expected dtype F32, got %s", name, meta.Dtype)
	}

	n := 1
	for _, d := range meta.Shape {
		if d < 0 || (d > 0 && n > len(body)/4/d) {
			return nil, nil, fmt.Errorf("classifier: tensor %q: shape %v exceeds body size %d",
				name, meta.Shape, len(body))
		}
		n *= d
	}
	start, end := meta.DataOffsets[0], meta.DataOffsets[1]
	if start < 0 || end < start || end > len(body) {
		return nil, nil, fmt.Errorf("classifier: tensor %q: data range [%d:%d] exceeds body size %d",
			name, start, end, len(body))
	}
	if end-start != n*4 {
		return nil, nil, fmt.Errorf("classifier: tensor %q: data size %d doesn't match shape %v",
			name, end-start, meta.Shape)
	}

	out := make([]float32, n)
	for i := range out {
		bits := binary.LittleEndian.Uint32(body[start+i*4 : start+i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, meta.Shape, nil
}

// parseClassesMeta reads the optional "classes" entry of __metadata__.
func parseClassesMeta(header map[string]json.RawMessage) ([]int, error) {
	raw, ok := header["__metadata__"]
	if !ok {
		return nil, nil
	}
	var meta map[string]string
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("classifier: failed to parse __metadata__: %w", err)
	}
	s, ok := meta["classes"]
	if !ok || strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	classes := make([]int, len(parts))
	for i, p := range parts {
		c, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("classifier: bad class %q in metadata: %w", p, err)
		}
		classes[i] = c
	}
	return classes, nil
}
