package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crimson-sun/quip/internal/model"
)

func TestResolveKnown(t *testing.T) {
	tests := []struct {
		idx  model.ClassIndex
		want model.Label
	}{
		{0, model.Figurative},
		{1, model.Irony},
		{2, model.Regular},
		{3, model.Sarcasm},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Resolve(tt.idx), "Resolve(%d)", tt.idx)
	}
}

func TestResolveOutOfRange(t *testing.T) {
	for _, idx := range []model.ClassIndex{-1, 4, 5, 42, -1 << 20, 1 << 30} {
		assert.Equal(t, model.Unknown, Resolve(idx), "Resolve(%d)", idx)
	}
}

func TestResolveIdempotent(t *testing.T) {
	for i := model.ClassIndex(-2); i < 6; i++ {
		assert.Equal(t, Resolve(i), Resolve(i))
	}
}

func TestResolveAllPreservesOrder(t *testing.T) {
	got := ResolveAll([]model.ClassIndex{3, 2, 9, 0})
	assert.Equal(t, []model.Label{model.Sarcasm, model.Regular, model.Unknown, model.Figurative}, got)
}

func TestResolveAllEmpty(t *testing.T) {
	got := ResolveAll(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAllMatchesResolve(t *testing.T) {
	entries := All()
	assert.Len(t, entries, 4)
	for _, e := range entries {
		assert.Equal(t, e.Label, Resolve(e.Index))
	}
}
