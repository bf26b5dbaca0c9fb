package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceID_KnownValues(t *testing.T) {
	assert.Equal(t, int64(8288303759567562418), SourceID("NovelHall", "en", 1))
	assert.Equal(t, int64(1331493835290843625), SourceID("foo", "en", 1))
}

func TestSourceID_NameIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, SourceID("novelhall", "en", 1), SourceID("NOVELHALL", "en", 1))
}

func TestSourceID_VariesByLangAndVersion(t *testing.T) {
	base := SourceID("Example", "en", 1)

	assert.NotEqual(t, base, SourceID("Example", "fr", 1))
	assert.NotEqual(t, base, SourceID("Example", "en", 2))
}

func TestSourceID_NeverNegative(t *testing.T) {
	for _, name := range []string{"a", "b", "c", "novel", "manga", "source-x", "源"} {
		for v := 0; v < 5; v++ {
			assert.GreaterOrEqual(t, SourceID(name, "en", v), int64(0))
		}
	}
}

func TestNewSourceDescriptor(t *testing.T) {
	caps := Capabilities{Popular: true, Search: true}
	d := NewSourceDescriptor("NovelHall", "en", "https://www.novelhall.com", 1, caps)

	assert.Equal(t, SourceID("NovelHall", "en", 1), d.ID)
	assert.Equal(t, "https://www.novelhall.com", d.BaseURL)
	assert.True(t, d.Capabilities.Search)
	assert.False(t, d.Capabilities.Latest)
	assert.Equal(t, "NovelHall (en)", d.String())
}
