package scraper

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

type staticSource struct {
	name string
	recs []models.ShowCanonical
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Records(context.Context) iter.Seq2[models.ShowCanonical, error] {
	return func(yield func(models.ShowCanonical, error) bool) {
		for _, r := range s.recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, 2023, *parseYear("first aired 2023-05-01"))
	assert.Nil(t, parseYear("no year"))
	assert.Nil(t, parseYear("1850"))
	assert.Equal(t, 16, parseInt("16 حلقة"))
	assert.Zero(t, parseInt(""))
	assert.True(t, hasArabic("المجد"))
	assert.False(t, hasArabic("The Glory"))
	assert.Equal(t, []string{"Crime", "Drama"}, mergeStringSlices([]string{"Crime"}, []string{"Drama", "Crime"}))
}
