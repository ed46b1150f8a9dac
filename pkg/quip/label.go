package quip

import (
	"github.com/crimson-sun/quip/internal/engine/labels"
	"github.com/crimson-sun/quip/internal/model"
)

// Label is a display label returned by the classifier.
type Label = model.Label

const (
	Figurative = model.Figurative
	Irony      = model.Irony
	Regular    = model.Regular
	Sarcasm    = model.Sarcasm
	// Unknown is returned when the classifier emits an index outside the
	// label map. It is never an error.
	Unknown = model.Unknown
)

// LabelInfo is one entry of the class index → label map.
type LabelInfo struct {
	Index int   `json:"index"`
	Label Label `json:"label"`
}

// Labels returns the label map in index order. Unknown is not listed.
func Labels() []LabelInfo {
	all := labels.All()
	out := make([]LabelInfo, len(all))
	for i, e := range all {
		out[i] = LabelInfo{Index: int(e.Index), Label: e.Label}
	}
	return out
}
