package ingest

import (
	"context"
	"strings"

	"github.com/aicha-kelia/drama-aggregator/internal/dedup"
	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

// planned holds the shows a dry run would have created. Later records of the
// same run resolve against it the way a real run resolves against the store.
type planned struct {
	shows []models.Show
}

func (p *planned) add(rec models.ShowCanonical) {
	s := showFromCanonical(rec)
	s.ID = -int64(len(p.shows) + 1)
	s.TitleKey, s.TitleArabicKey = dedup.Keys(s.Title, s.TitleArabic)
	p.shows = append(p.shows, *s)
}

func (p *planned) FindByExternalID(_ context.Context, externalID string) (*models.Show, error) {
	for i := range p.shows {
		if p.shows[i].ExternalID == externalID {
			s := p.shows[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (p *planned) FindByTitleFold(_ context.Context, titles ...string) ([]models.Show, error) {
	var out []models.Show
	for _, s := range p.shows {
		for _, t := range titles {
			if strings.EqualFold(s.Title, t) || strings.EqualFold(s.TitleArabic, t) {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (p *planned) FindByKeys(_ context.Context, keys ...string) ([]models.Show, error) {
	var out []models.Show
	for _, s := range p.shows {
		for _, k := range keys {
			if k != "" && (k == s.TitleKey || k == s.TitleArabicKey) {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}
