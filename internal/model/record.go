package model

// PredictionRecord pairs an input statement with its predicted label.
type PredictionRecord struct {
	Text  string `json:"text"`
	Label Label  `json:"predicted_sentiment"`
}
