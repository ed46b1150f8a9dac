package vectorizer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

type analyzerConfig struct {
	lowercase    bool
	stripAccents string // "", "ascii" or "unicode"
	tokenPattern string
	stopWords    []string
	ngramMin     int
	ngramMax     int
}

// analyzer performs word-level preprocessing, tokenization, stop-word
// removal and n-gram expansion.
type analyzer struct {
	lowercase    bool
	stripAccents string
	pattern      *regexp.Regexp // nil selects the built-in word scanner
	group        int            // submatch holding the token, 0 for the whole match
	stopWords    map[string]struct{}
	ngramMin     int
	ngramMax     int
}

func newAnalyzer(cfg analyzerConfig) (*analyzer, error) {
	switch cfg.stripAccents {
	case "", "ascii", "unicode":
	default:
		return nil, fmt.Errorf("unsupported strip_accents %q", cfg.stripAccents)
	}

	a := &analyzer{
		lowercase:    cfg.lowercase,
		stripAccents: cfg.stripAccents,
		ngramMin:     cfg.ngramMin,
		ngramMax:     cfg.ngramMax,
	}

	// RE2 rejects the (?u) flag. The built-in scanner is already Unicode-aware.
	pat := strings.TrimPrefix(cfg.tokenPattern, "(?u)")
	if pat != "" && pat != strings.TrimPrefix(defaultTokenPattern, "(?u)") {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("token_pattern: %w", err)
		}
		switch re.NumSubexp() {
		case 0:
		case 1:
			a.group = 1
		default:
			return nil, fmt.Errorf("token_pattern %q has more than one capturing group", cfg.tokenPattern)
		}
		a.pattern = re
	}

	if len(cfg.stopWords) > 0 {
		a.stopWords = make(map[string]struct{}, len(cfg.stopWords))
		for _, w := range cfg.stopWords {
			a.stopWords[w] = struct{}{}
		}
	}
	return a, nil
}

// analyze returns the terms of doc, unigrams first, then longer n-grams in
// order of increasing length.
func (a *analyzer) analyze(doc string) []string {
	tokens := a.tokenize(a.preprocess(doc))
	if a.stopWords != nil {
		kept := tokens[:0]
		for _, tok := range tokens {
			if _, stop := a.stopWords[tok]; !stop {
				kept = append(kept, tok)
			}
		}
		tokens = kept
	}
	return a.ngrams(tokens)
}

// preprocess lowercases first and strips accents second.
func (a *analyzer) preprocess(doc string) string {
	if a.lowercase {
		doc = strings.ToLower(doc)
	}
	switch a.stripAccents {
	case "unicode":
		doc = stripAccents(doc)
	case "ascii":
		doc = stripToASCII(doc)
	}
	return doc
}

func (a *analyzer) tokenize(doc string) []string {
	if a.pattern == nil {
		return scanWords(doc)
	}
	if a.group == 0 {
		return a.pattern.FindAllString(doc, -1)
	}
	matches := a.pattern.FindAllStringSubmatch(doc, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, m[a.group])
	}
	return tokens
}

func (a *analyzer) ngrams(tokens []string) []string {
	if a.ngramMax == 1 {
		return tokens
	}

	n := len(tokens)
	var terms []string
	lo := a.ngramMin
	if lo == 1 {
		terms = append(terms, tokens...)
		lo = 2
	}
	for size := lo; size <= a.ngramMax && size <= n; size++ {
		for i := 0; i+size <= n; i++ {
			terms = append(terms, strings.Join(tokens[i:i+size], " "))
		}
	}
	return terms
}

// scanWords returns every maximal run of two or more word characters.
func scanWords(text string) []string {
	var tokens []string
	start, runes := -1, 0
	for i, r := range text {
		if isWordChar(r) {
			if start < 0 {
				start, runes = i, 0
			}
			runes++
			continue
		}
		if start >= 0 && runes >= 2 {
			tokens = append(tokens, text[start:i])
		}
		start = -1
	}
	if start >= 0 && runes >= 2 {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

func isWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// stripAccents removes combining marks after NFKD decomposition.
func stripAccents(text string) string {
	decomposed := norm.NFKD.String(text)
	if decomposed == text && isASCII(text) {
		return text
	}
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.In(r, unicode.Mn) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// stripToASCII decomposes text and drops every non-ASCII rune.
func stripToASCII(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range norm.NFKD.String(text) {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}
