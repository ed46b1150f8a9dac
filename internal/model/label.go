package model

// Label is the display name of a rhetorical category.
type Label string

const (
	Figurative Label = "Figurative"
	Irony      Label = "Irony"
	Regular    Label = "Regular"
	Sarcasm    Label = "Sarcasm"

	// Unknown is returned for class indices outside the label map.
	Unknown Label = "Unknown"
)

// ClassIndex is the raw class identifier emitted by a classifier.
type ClassIndex int

// String returns the label text.
func (l Label) String() string { return string(l) }
