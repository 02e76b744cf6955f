package dedup

import (
	"strings"

	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

// MergeMissing copies fields from cand into stored only where stored is
// empty. It never overwrites a populated field and returns the names of the
// fields it filled.
func MergeMissing(stored *models.Show, cand models.ShowCanonical) []string {
	var changed []string

	fillString := func(name string, dst *string, src string) {
		src = strings.TrimSpace(src)
		if strings.TrimSpace(*dst) == "" && src != "" {
			*dst = src
			changed = append(changed, name)
		}
	}
	fillInt := func(name string, dst *int, src int) {
		if *dst == 0 && src > 0 {
			*dst = src
			changed = append(changed, name)
		}
	}

	fillString("title", &stored.Title, cand.Title)
	fillString("title_arabic", &stored.TitleArabic, cand.TitleArabic)
	fillString("title_original", &stored.TitleOriginal, cand.TitleOriginal)
	fillString("description", &stored.Description, cand.Description)
	fillString("description_arabic", &stored.DescriptionArabic, cand.DescriptionArabic)
	fillString("country", &stored.Country, models.NormalizeCountry(cand.Country))
	fillString("status", &stored.Status, models.NormalizeStatus(cand.Status))
	fillString("external_id", &stored.ExternalID, cand.ExternalID)
	fillInt("total_episodes", &stored.TotalEpisodes, cand.TotalEpisodes)
	fillInt("episode_duration", &stored.EpisodeDuration, cand.EpisodeDuration)

	if stored.ReleaseYear == nil && cand.ReleaseYear != nil {
		y := *cand.ReleaseYear
		stored.ReleaseYear = &y
		changed = append(changed, "release_year")
	}
	if !stored.HasPoster() {
		fillString("poster_url", &stored.PosterURL, cand.PosterURL)
	}

	if len(changed) > 0 {
		stored.TitleKey, stored.TitleArabicKey = Keys(stored.Title, stored.TitleArabic)
	}
	return changed
}

// MissingGenres returns the names in want that stored does not carry yet,
// in order and without duplicates.
func MissingGenres(stored []models.Genre, want []string) []string {
	have := make(map[string]struct{}, len(stored))
	for _, g := range stored {
		have[g.Name] = struct{}{}
	}

	var out []string
	for _, name := range want {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := have[name]; ok {
			continue
		}
		have[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
