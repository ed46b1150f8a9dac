// Package dedup collapses repeated statements in a batch so each distinct
// text is vectorized and classified once.
package dedup

// Set is the distinct texts of a batch plus, for every input position, the
// index of its text in Unique.
type Set struct {
	Unique []string
	Index  []int
}

// Texts groups identical strings. Unique is in first-occurrence order.
func Texts(texts []string) Set {
	s := Set{
		Unique: make([]string, 0, len(texts)),
		Index:  make([]int, len(texts)),
	}
	seen := make(map[string]int, len(texts))
	for i, t := range texts {
		pos, ok := seen[t]
		if !ok {
			pos = len(s.Unique)
			seen[t] = pos
			s.Unique = append(s.Unique, t)
		}
		s.Index[i] = pos
	}
	return s
}

// Duplicates returns how many inputs were folded into an earlier one.
func (s Set) Duplicates() int {
	return len(s.Index) - len(s.Unique)
}

// Expand maps per-unique results back to input positions. len(results)
// must equal len(s.Unique).
func Expand[T any](s Set, results []T) []T {
	out := make([]T, len(s.Index))
	for i, pos := range s.Index {
		out[i] = results[pos]
	}
	return out
}
