package dedup

import (
	"context"
	"fmt"
	"strings"

	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

// Mode selects how strict matching is.
type Mode int

const (
	// ModeImport matches on title alone (bulk JSON files).
	ModeImport Mode = iota
	// ModeScrape additionally requires the same release year and country so
	// seasons and remakes sharing a title stay distinct.
	ModeScrape
)

func (m Mode) String() string {
	if m == ModeScrape {
		return "scrape"
	}
	return "import"
}

type Outcome int

const (
	New Outcome = iota
	ExistingExactMatch
	ExistingFuzzyMatch
)

func (o Outcome) String() string {
	switch o {
	case ExistingExactMatch:
		return "exact"
	case ExistingFuzzyMatch:
		return "fuzzy"
	default:
		return "new"
	}
}

type Resolution struct {
	Outcome Outcome
	Show    *models.Show // nil when Outcome is New
}

// Existing reports whether the candidate matched a stored show.
func (r Resolution) Existing() bool { return r.Outcome != New && r.Show != nil }

// Store is the read side the resolver needs.
type Store interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.Show, error)
	FindByTitleFold(ctx context.Context, titles ...string) ([]models.Show, error)
	FindByKeys(ctx context.Context, keys ...string) ([]models.Show, error)
}

type Resolver struct {
	Store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{Store: store}
}

// Resolve decides whether cand already exists. Checks run in order: external
// ID, case-insensitive title equality, normalized key equality.
func (r *Resolver) Resolve(ctx context.Context, cand models.ShowCanonical, mode Mode) (Resolution, error) {
	if id := strings.TrimSpace(cand.ExternalID); id != "" {
		s, err := r.Store.FindByExternalID(ctx, id)
		if err != nil {
			return Resolution{}, fmt.Errorf("find by external id: %w", err)
		}
		if s != nil {
			return Resolution{Outcome: ExistingExactMatch, Show: s}, nil
		}
	}

	titles := nonEmpty(cand.Title, cand.TitleArabic)
	if len(titles) == 0 {
		return Resolution{}, models.ErrMissingTitle
	}

	stored, err := r.Store.FindByTitleFold(ctx, titles...)
	if err != nil {
		return Resolution{}, fmt.Errorf("find by title: %w", err)
	}
	for i := range stored {
		s := stored[i]
		if exactTitleMatch(s, titles) && attributesMatch(s, cand, mode) {
			return Resolution{Outcome: ExistingExactMatch, Show: &s}, nil
		}
	}

	tk, ak := Keys(cand.Title, cand.TitleArabic)
	keys := nonEmpty(tk, ak)
	if len(keys) == 0 {
		return Resolution{Outcome: New}, nil
	}

	stored, err = r.Store.FindByKeys(ctx, keys...)
	if err != nil {
		return Resolution{}, fmt.Errorf("find by keys: %w", err)
	}
	for i := range stored {
		s := stored[i]
		if keyMatch(s, keys) && attributesMatch(s, cand, mode) {
			return Resolution{Outcome: ExistingFuzzyMatch, Show: &s}, nil
		}
	}

	return Resolution{Outcome: New}, nil
}

func exactTitleMatch(s models.Show, titles []string) bool {
	for _, t := range titles {
		if (s.Title != "" && strings.EqualFold(strings.TrimSpace(s.Title), t)) ||
			(s.TitleArabic != "" && strings.EqualFold(strings.TrimSpace(s.TitleArabic), t)) {
			return true
		}
	}
	return false
}

func keyMatch(s models.Show, keys []string) bool {
	for _, k := range keys {
		if k == s.TitleKey || k == s.TitleArabicKey {
			return true
		}
	}
	return false
}

func attributesMatch(s models.Show, cand models.ShowCanonical, mode Mode) bool {
	if mode != ModeScrape {
		return true
	}
	if !sameYear(s.ReleaseYear, cand.ReleaseYear) {
		return false
	}
	return s.Country == models.NormalizeCountry(cand.Country)
}

func sameYear(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func nonEmpty(vals ...string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		dup := false
		for _, o := range out {
			if o == v {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}
