package ingest

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/aicha-kelia/drama-aggregator/internal/dedup"
	"github.com/aicha-kelia/drama-aggregator/internal/linkfinder"
	"github.com/aicha-kelia/drama-aggregator/internal/shows"
	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

var (
	ErrNoFinder = errors.New("ingest: link discovery is not configured")
	ErrNoLookup = errors.New("ingest: genre lookup is not configured")
	ErrNoMirror = errors.New("ingest: image store is not configured")
)

// forEachShow runs fn over the stored shows selected by f.
func (o *Orchestrator) forEachShow(ctx context.Context, job string, f shows.Filter, fn func(log logrus.FieldLogger, show models.Show, r *run) (outcome, error)) (*Summary, error) {
	r := o.start(job)
	list, err := o.shows.ListForProcessing(ctx, f)
	if err != nil {
		return o.finish(r), err
	}
	r.log.Infof("%d shows selected", len(list))

	for _, show := range list {
		err := o.step(ctx, r, show.DisplayTitle(), func(log logrus.FieldLogger) (outcome, error) {
			return fn(log.WithField("id", show.ID), show, r)
		})
		if err != nil {
			return o.finish(r), err
		}
	}
	return o.finish(r), ctx.Err()
}

// DiscoverLinks runs the link discovery engine over stored shows. A show
// counts as added when at least one link was saved.
func (o *Orchestrator) DiscoverLinks(ctx context.Context, f shows.Filter) (*Summary, error) {
	if o.finder == nil {
		return nil, ErrNoFinder
	}
	return o.forEachShow(ctx, "links", f, func(log logrus.FieldLogger, show models.Show, r *run) (outcome, error) {
		res := o.discover(ctx, log, show)
		var firstErr error
		for _, sr := range res.Sites {
			if o.opts.DryRun {
				if sr.Removed != "" {
					r.sum.intend("show %d: remove stale %s link %s", show.ID, sr.Site, sr.Removed)
				}
				if sr.State == linkfinder.Saved {
					r.sum.intend("show %d: save %s link %s", show.ID, sr.Site, sr.URL)
				}
			}
			if sr.State == linkfinder.Failed && firstErr == nil {
				firstErr = sr.Err
			}
		}
		if o.opts.DryRun && res.PosterSet != "" {
			r.sum.intend("show %d: set poster %s", show.ID, res.PosterSet)
		}
		switch {
		case res.Count(linkfinder.Saved) > 0:
			return added, nil
		case firstErr != nil:
			return 0, firstErr
		}
		return skipped, nil
	})
}

// BackfillGenres looks up shows that have no genres and attaches what the
// genre lookup returns.
func (o *Orchestrator) BackfillGenres(ctx context.Context, f shows.Filter) (*Summary, error) {
	if o.lookup == nil {
		return nil, ErrNoLookup
	}
	f.WithoutGenres = true
	return o.forEachShow(ctx, "backfill-genres", f, func(log logrus.FieldLogger, show models.Show, r *run) (outcome, error) {
		title := show.Title
		if title == "" {
			title = show.TitleOriginal
		}
		if title == "" {
			title = show.TitleArabic
		}
		names, err := o.lookup.GenresFor(ctx, title, show.ReleaseYear)
		if err != nil {
			return 0, err
		}
		names = dedup.MissingGenres(nil, names)
		if len(names) == 0 {
			log.Info("no genres found")
			return skipped, nil
		}
		if o.opts.DryRun {
			r.sum.intend("show %d: add genres %v", show.ID, names)
			return added, nil
		}
		if err := o.attachGenres(ctx, show.ID, names); err != nil {
			return 0, err
		}
		log.WithField("genres", names).Info("genres attached")
		return added, nil
	})
}

// BackfillPosters copies external posters into the image store for shows
// that do not own a copy yet.
func (o *Orchestrator) BackfillPosters(ctx context.Context, f shows.Filter) (*Summary, error) {
	if o.mirror == nil {
		return nil, ErrNoMirror
	}
	f.ExternalPosterOnly = true
	return o.forEachShow(ctx, "backfill-posters", f, func(log logrus.FieldLogger, show models.Show, r *run) (outcome, error) {
		if o.opts.DryRun {
			r.sum.intend("show %d: upload poster %s", show.ID, show.PosterURL)
			return added, nil
		}
		if err := o.mirrorPoster(ctx, &show); err != nil {
			return 0, err
		}
		log.WithField("poster", show.PosterPath).Info("poster uploaded")
		return added, nil
	})
}
