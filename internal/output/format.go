package output

import (
	"encoding/json"
	"fmt"

	"github.com/crimson-sun/quip/internal/model"
)

// Format selects how a record is rendered.
type Format int

const (
	// Text renders "Predicted Sentiment: <Label>".
	Text Format = iota
	// JSON renders one JSON object per record.
	JSON
)

// ParseFormat maps "text" and "json" to a Format. Unknown strings default
// to Text.
func ParseFormat(s string) Format {
	if s == "json" {
		return JSON
	}
	return Text
}

// FormatRecord renders a record as a single line without a trailing newline.
func FormatRecord(r model.PredictionRecord, f Format) ([]byte, error) {
	if f == JSON {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("format record: %w", err)
		}
		return data, nil
	}
	return []byte("Predicted Sentiment: " + string(r.Label)), nil
}
