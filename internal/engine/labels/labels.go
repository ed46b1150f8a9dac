// Package labels maps classifier output indices to display labels.
package labels

import "github.com/crimson-sun/quip/internal/model"

// Entry is one row of the label map.
type Entry struct {
	Index model.ClassIndex `json:"index"`
	Label model.Label      `json:"label"`
}

// Resolve returns the label for a class index. Indices outside the map
// resolve to model.Unknown.
func Resolve(idx model.ClassIndex) model.Label {
	switch idx {
	case 0:
		return model.Figurative
	case 1:
		return model.Irony
	case 2:
		return model.Regular
	case 3:
		return model.Sarcasm
	default:
		return model.Unknown
	}
}

// ResolveAll resolves every index in order.
func ResolveAll(idx []model.ClassIndex) []model.Label {
	out := make([]model.Label, len(idx))
	for i, c := range idx {
		out[i] = Resolve(c)
	}
	return out
}

// All returns the known label map in index order. Unknown is not included.
func All() []Entry {
	return []Entry{
		{Index: 0, Label: model.Figurative},
		{Index: 1, Label: model.Irony},
		{Index: 2, Label: model.Regular},
		{Index: 3, Label: model.Sarcasm},
	}
}
