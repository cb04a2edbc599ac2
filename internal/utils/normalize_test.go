package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Robert Downey Jr.", "robertdowneyjr"},
		{"KEANU REEVES", "keanureeves"},
		{"  spaced  out  ", "spacedout"},
		{"O'Brien-Smith", "obriensmith"},
		{"Léa Seydoux", "laseydoux"},
		{"123 Numbers", "123numbers"},
		{"", ""},
		{"!@#$%", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeName(tc.in), "input %q", tc.in)
	}
}

func TestNormalizePatterns(t *testing.T) {
	t.Run("normalizes and keeps order", func(t *testing.T) {
		got := NormalizePatterns([]string{"Tom Hanks", "Meg Ryan"})
		assert.Equal(t, []string{"tomhanks", "megryan"}, got)
	})

	t.Run("drops empties and duplicates", func(t *testing.T) {
		got := NormalizePatterns([]string{"Tom Hanks", "tom-hanks", "  ", "!!!", "TOM HANKS"})
		assert.Equal(t, []string{"tomhanks"}, got)
	})

	t.Run("nil input yields empty", func(t *testing.T) {
		assert.Empty(t, NormalizePatterns(nil))
	})
}
