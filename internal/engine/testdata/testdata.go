// Package testdata holds fixture artifacts and a labeled statement corpus
// shared by engine tests.
package testdata

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
)

//go:embed corpus.json
var corpusJSON []byte

// CorpusEntry is a statement with the label the fixture model assigns it.
type CorpusEntry struct {
	Text          string `json:"text"`
	ExpectedLabel string `json:"expected_label"`
	Description   string `json:"description"`
}

// LoadCorpus parses the embedded corpus.json and returns all entries.
func LoadCorpus() ([]CorpusEntry, error) {
	var entries []CorpusEntry
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}

// Texts returns the statement column of the corpus.
func Texts(entries []CorpusEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

// VectorizerPath returns the absolute path of the fixture vectorizer.
func VectorizerPath() string {
	return filepath.Join(dir(), "vectorizer.json")
}

// ClassifierPath returns the absolute path of the fixture linear classifier.
func ClassifierPath() string {
	return filepath.Join(dir(), "classifier.json")
}

func dir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Dir(file)
}
