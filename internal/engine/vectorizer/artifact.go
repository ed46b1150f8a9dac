package vectorizer

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	normL1 = "l1"
	normL2 = "l2"

	defaultTokenPattern = `(?u)\b\w\w+\b`
)

// Artifact is the serialized form of a fitted TF-IDF vectorizer.
// Field names follow the exporter's JSON keys.
type Artifact struct {
	Vocabulary   map[string]int32 `json:"vocabulary"`
	IDF          []float64        `json:"idf"`
	Lowercase    bool             `json:"lowercase"`
	StripAccents *string          `json:"strip_accents"`
	Analyzer     string           `json:"analyzer"`
	TokenPattern string           `json:"token_pattern"`
	NgramRange   [2]int           `json:"ngram_range"`
	StopWords    []string         `json:"stop_words"`
	Norm         *string          `json:"norm"`
	UseIDF       bool             `json:"use_idf"`
	SublinearTF  bool             `json:"sublinear_tf"`
	Binary       bool             `json:"binary"`
}

// defaultArtifact returns an Artifact pre-filled with the fitting defaults.
// Keys absent from a file keep these values; explicit nulls clear pointers.
func defaultArtifact() Artifact {
	norm := normL2
	return Artifact{
		Lowercase:    true,
		Analyzer:     "word",
		TokenPattern: defaultTokenPattern,
		NgramRange:   [2]int{1, 1},
		Norm:         &norm,
		UseIDF:       true,
	}
}

// Load reads a vectorizer artifact from a JSON file.
func Load(path string) (*TFIDF, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vectorizer: %w", err)
	}
	a := defaultArtifact()
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("vectorizer: parse %s: %w", path, err)
	}
	return New(a)
}

// New builds a TFIDF from an in-memory artifact, validating it.
func New(a Artifact) (*TFIDF, error) {
	if len(a.Vocabulary) == 0 {
		return nil, fmt.Errorf("vectorizer: empty vocabulary")
	}
	if a.Analyzer != "" && a.Analyzer != "word" {
		return nil, fmt.Errorf("vectorizer: unsupported analyzer %q", a.Analyzer)
	}

	lo, hi := a.NgramRange[0], a.NgramRange[1]
	if lo < 1 || hi < lo {
		return nil, fmt.Errorf("vectorizer: invalid ngram_range [%d, %d]", lo, hi)
	}

	norm := ""
	if a.Norm != nil {
		norm = *a.Norm
	}
	if norm != "" && norm != normL1 && norm != normL2 {
		return nil, fmt.Errorf("vectorizer: unsupported norm %q", norm)
	}

	maxCol := int32(-1)
	for term, col := range a.Vocabulary {
		if col < 0 {
			return nil, fmt.Errorf("vectorizer: negative column %d for term %q", col, term)
		}
		if col > maxCol {
			maxCol = col
		}
	}

	dim := int(maxCol) + 1
	if a.UseIDF {
		if len(a.IDF) < dim {
			return nil, fmt.Errorf("vectorizer: idf has %d entries, vocabulary needs %d", len(a.IDF), dim)
		}
		dim = len(a.IDF)
	}

	accents := ""
	if a.StripAccents != nil {
		accents = *a.StripAccents
	}
	an, err := newAnalyzer(analyzerConfig{
		lowercase:    a.Lowercase,
		stripAccents: accents,
		tokenPattern: a.TokenPattern,
		stopWords:    a.StopWords,
		ngramMin:     lo,
		ngramMax:     hi,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorizer: %w", err)
	}

	vocab := make(map[string]int32, len(a.Vocabulary))
	for term, col := range a.Vocabulary {
		vocab[term] = col
	}
	var idf []float64
	if a.UseIDF {
		idf = append([]float64(nil), a.IDF...)
	}

	return &TFIDF{
		an:     an,
		vocab:  vocab,
		idf:    idf,
		dim:    dim,
		norm:   norm,
		useIDF: a.UseIDF,
		subTF:  a.SublinearTF,
		binary: a.Binary,
		nTerms: len(vocab),
	}, nil
}
