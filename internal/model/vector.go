package model

// FeatureVector is a sparse, fixed-dimension feature vector.
// Indices are strictly ascending and every index is in [0, Dim).
type FeatureVector struct {
	Dim     int
	Indices []int32
	Values  []float32
}

// Dense expands the vector into a zero-filled slice of length Dim.
func (v FeatureVector) Dense() []float32 {
	out := make([]float32, v.Dim)
	for i, idx := range v.Indices {
		out[idx] = v.Values[i]
	}
	return out
}
