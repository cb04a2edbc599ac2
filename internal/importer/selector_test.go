package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectorNormalizesWhitelist(t *testing.T) {
	s := NewSelector([]string{" Movie ", "tvMovie", "", "SHORT"})
	assert.Equal(t, []string{"movie", "tvmovie", "short"}, s.titleTypes)
}

func TestSelectTopNEmptyWhitelist(t *testing.T) {
	s := NewSelector(nil)
	_, err := s.SelectTopN(context.Background(), nil, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whitelist is empty")
}

func TestQuotedList(t *testing.T) {
	assert.Equal(t, "'movie', 'tvmovie'", quotedList([]string{"movie", "tvmovie"}))
	assert.Equal(t, "'o''brien'", quotedList([]string{"o'brien"}))
}
