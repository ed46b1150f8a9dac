package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/quip/internal/model"
)

func TestParseFormat(t *testing.T) {
	assert.Equal(t, JSON, ParseFormat("json"))
	assert.Equal(t, Text, ParseFormat("text"))
	assert.Equal(t, Text, ParseFormat(""))
	assert.Equal(t, Text, ParseFormat("yaml"))
}

func TestFormatRecordText(t *testing.T) {
	got, err := FormatRecord(model.PredictionRecord{Text: "wow, just wow", Label: model.Sarcasm}, Text)
	require.NoError(t, err)
	assert.Equal(t, "Predicted Sentiment: Sarcasm", string(got))
}

func TestFormatRecordJSON(t *testing.T) {
	got, err := FormatRecord(model.PredictionRecord{Text: "it is sunny", Label: model.Regular}, JSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"it is sunny","predicted_sentiment":"Regular"}`, string(got))
}

func TestFormatRecordUnknown(t *testing.T) {
	got, err := FormatRecord(model.PredictionRecord{Label: model.Unknown}, Text)
	require.NoError(t, err)
	assert.Equal(t, "Predicted Sentiment: Unknown", string(got))
}
