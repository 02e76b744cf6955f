package ingest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/aicha-kelia/drama-aggregator/internal/dedup"
	"github.com/aicha-kelia/drama-aggregator/internal/imagestore"
	"github.com/aicha-kelia/drama-aggregator/internal/linkfinder"
	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

func (o *Orchestrator) ingestOne(ctx context.Context, r *run, log logrus.FieldLogger, rec models.ShowCanonical, mode dedup.Mode) (outcome, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}

	res, err := o.resolver.Resolve(ctx, rec, mode)
	if err != nil {
		return 0, fmt.Errorf("resolve: %w", err)
	}
	if res.Existing() {
		log.WithField("match", res.Outcome.String()).Debugf("matches show %d", res.Show.ID)
		return skipped, o.mergeExisting(ctx, r, log, res.Show.ID, rec)
	}

	if o.opts.DryRun {
		return o.planCreate(ctx, r, rec, mode)
	}
	return added, o.create(ctx, log, rec)
}

// planCreate records an intended create, or a skip when an earlier record of
// the same dry run already planned the show.
func (o *Orchestrator) planCreate(ctx context.Context, r *run, rec models.ShowCanonical, mode dedup.Mode) (outcome, error) {
	res, err := dedup.NewResolver(&r.planned).Resolve(ctx, rec, mode)
	if err != nil {
		return 0, fmt.Errorf("resolve: %w", err)
	}
	if res.Existing() {
		r.sum.intend("merge %q into planned %q", rec.DisplayTitle(), res.Show.DisplayTitle())
		return skipped, nil
	}
	r.planned.add(rec)
	r.sum.intend("create %q (%s, %d genres, %d links)", rec.DisplayTitle(), orDash(rec.Country), len(rec.Genres), len(rec.WatchLinks))
	return added, nil
}

// create persists a new show with its Arabic text, genres, links and poster.
// Attachments are separate statements; a re-run repairs anything left
// missing through mergeExisting.
func (o *Orchestrator) create(ctx context.Context, log logrus.FieldLogger, rec models.ShowCanonical) error {
	show := showFromCanonical(rec)

	if strings.TrimSpace(show.TitleArabic) == "" {
		show.TitleArabic = o.localizer.LocalizeName(ctx, show.Title)
	}
	if strings.TrimSpace(show.DescriptionArabic) == "" {
		if hasArabic(show.Description) {
			show.DescriptionArabic = show.Description
		} else {
			show.DescriptionArabic = o.localizer.Localize(ctx, show.Description)
		}
	}

	if _, err := o.shows.Create(ctx, show); err != nil {
		return err
	}
	log.WithField("id", show.ID).Info("show created")

	if err := o.attachGenres(ctx, show.ID, rec.Genres); err != nil {
		return err
	}
	if err := o.attachLinks(ctx, show.ID, rec.WatchLinks, nil); err != nil {
		return err
	}
	if show.PosterURL != "" && o.mirror != nil {
		if err := o.mirrorPoster(ctx, show); err != nil {
			log.WithError(err).Warn("poster upload failed, keeping external url")
		}
	}
	if o.opts.DiscoverLinks && o.finder != nil {
		o.discover(ctx, log, *show)
	}
	return nil
}

// mergeExisting fills what the stored show is missing from rec and never
// overwrites anything.
func (o *Orchestrator) mergeExisting(ctx context.Context, r *run, log logrus.FieldLogger, id int64, rec models.ShowCanonical) error {
	stored, err := o.shows.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("show %d vanished", id)
	}

	changed := dedup.MergeMissing(stored, rec)
	missingGenres := dedup.MissingGenres(stored.Genres, rec.Genres)
	var newLinks []models.WatchLinkCanonical
	for _, l := range rec.WatchLinks {
		if !hasLink(stored.Links, l.Site) {
			newLinks = append(newLinks, l)
		}
	}

	if len(changed) == 0 && len(missingGenres) == 0 && len(newLinks) == 0 {
		return nil
	}
	if o.opts.DryRun {
		var parts []string
		if len(changed) > 0 {
			parts = append(parts, "fill "+strings.Join(changed, ", "))
		}
		if len(missingGenres) > 0 {
			parts = append(parts, "add genres "+strings.Join(missingGenres, ", "))
		}
		if len(newLinks) > 0 {
			parts = append(parts, fmt.Sprintf("add %d links", len(newLinks)))
		}
		r.sum.intend("update show %d %q: %s", id, stored.DisplayTitle(), strings.Join(parts, "; "))
		return nil
	}

	if len(changed) > 0 {
		if err := o.shows.Update(ctx, stored); err != nil {
			return err
		}
		log.WithField("fields", changed).Info("filled missing fields")
	}
	if err := o.attachGenres(ctx, id, missingGenres); err != nil {
		return err
	}
	if err := o.attachLinks(ctx, id, newLinks, stored.Links); err != nil {
		return err
	}
	if o.mirror != nil && stored.PosterPath == "" && slices.Contains(changed, "poster_url") {
		if err := o.mirrorPoster(ctx, stored); err != nil {
			log.WithError(err).Warn("poster upload failed, keeping external url")
		}
	}
	return nil
}

// attachGenres creates missing genres (Arabic name localized once, on
// creation) and links them to the show.
func (o *Orchestrator) attachGenres(ctx context.Context, showID int64, names []string) error {
	arabic := func(name string) string { return o.localizer.LocalizeName(ctx, name) }
	for _, name := range names {
		g, _, err := o.genres.Ensure(ctx, name, arabic)
		if err != nil {
			return fmt.Errorf("genre %q: %w", name, err)
		}
		if _, err := o.genres.Attach(ctx, showID, g.ID); err != nil {
			return fmt.Errorf("genre %q: %w", name, err)
		}
	}
	return nil
}

func (o *Orchestrator) attachLinks(ctx context.Context, showID int64, links []models.WatchLinkCanonical, existing []models.WatchLink) error {
	for _, l := range links {
		if strings.TrimSpace(l.Site) == "" || strings.TrimSpace(l.URL) == "" || hasLink(existing, l.Site) {
			continue
		}
		err := o.links.Upsert(ctx, models.WatchLink{
			ShowID:            showID,
			SiteName:          strings.TrimSpace(l.Site),
			URL:               strings.TrimSpace(l.URL),
			Language:          l.Language,
			EpisodesAvailable: l.EpisodesAvailable,
		})
		if err != nil {
			return fmt.Errorf("link %s: %w", l.Site, err)
		}
	}
	return nil
}

// mirrorPoster copies the external poster into the image store and records
// the owned URL. On error the show keeps its external URL.
func (o *Orchestrator) mirrorPoster(ctx context.Context, show *models.Show) error {
	if o.mirror == nil {
		return ErrNoMirror
	}
	u, err := o.mirror.Copy(ctx, show.PosterURL, imagestore.ShowKey(show.ID))
	if err != nil {
		return err
	}
	if err := o.shows.SetPosterPath(ctx, show.ID, u); err != nil {
		return err
	}
	show.PosterPath = u
	return nil
}

func (o *Orchestrator) discover(ctx context.Context, log logrus.FieldLogger, show models.Show) linkfinder.Result {
	res := o.finder.Discover(ctx, show)
	log.WithFields(logrus.Fields{
		"saved":    res.Count(linkfinder.Saved),
		"kept":     res.Count(linkfinder.Kept),
		"rejected": res.Count(linkfinder.AllCandidatesRejected),
		"failed":   res.Count(linkfinder.Failed),
	}).Info("link discovery done")
	return res
}

func showFromCanonical(c models.ShowCanonical) *models.Show {
	return &models.Show{
		Title:             strings.TrimSpace(c.Title),
		TitleArabic:       strings.TrimSpace(c.TitleArabic),
		TitleOriginal:     strings.TrimSpace(c.TitleOriginal),
		Description:       strings.TrimSpace(c.Description),
		DescriptionArabic: strings.TrimSpace(c.DescriptionArabic),
		Country:           models.NormalizeCountry(c.Country),
		TotalEpisodes:     max(c.TotalEpisodes, 0),
		EpisodeDuration:   max(c.EpisodeDuration, 0),
		ReleaseYear:       c.ReleaseYear,
		Status:            models.NormalizeStatus(c.Status),
		PosterURL:         strings.TrimSpace(c.PosterURL),
		ExternalID:        strings.TrimSpace(c.ExternalID),
	}
}

func hasLink(links []models.WatchLink, site string) bool {
	for _, l := range links {
		if strings.EqualFold(l.SiteName, strings.TrimSpace(site)) {
			return true
		}
	}
	return false
}

func hasArabic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Arabic, r) {
			return true
		}
	}
	return false
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
