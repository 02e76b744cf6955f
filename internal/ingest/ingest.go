// Package ingest runs the batch jobs that fill the catalog: importing records
// from a Source, discovering watch links and backfilling genres or posters.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aicha-kelia/drama-aggregator/internal/dedup"
	"github.com/aicha-kelia/drama-aggregator/internal/genres"
	"github.com/aicha-kelia/drama-aggregator/internal/imagestore"
	"github.com/aicha-kelia/drama-aggregator/internal/linkfinder"
	"github.com/aicha-kelia/drama-aggregator/internal/localize"
	"github.com/aicha-kelia/drama-aggregator/internal/scraper"
	"github.com/aicha-kelia/drama-aggregator/internal/shows"
	"github.com/aicha-kelia/drama-aggregator/internal/watchlinks"
)

// GenreLookup finds the genres of a show by title (TMDB search).
type GenreLookup interface {
	GenresFor(ctx context.Context, title string, year *int) ([]string, error)
}

type Options struct {
	ItemDelay time.Duration
	DryRun    bool
	// DiscoverLinks runs link discovery for every newly created show.
	DiscoverLinks bool
}

// Deps are the collaborators of an Orchestrator. Mirror, Finder and Lookup
// are optional; the features they back are skipped when nil.
type Deps struct {
	Shows     *shows.Repo
	Genres    *genres.Repo
	Links     *watchlinks.Repo
	Localizer *localize.Localizer
	Mirror    *imagestore.Mirror
	Finder    *linkfinder.Engine
	Lookup    GenreLookup
	Log       logrus.FieldLogger
}

// Orchestrator processes items one at a time. A failing item is counted and
// logged, never fatal to the batch.
type Orchestrator struct {
	shows     *shows.Repo
	genres    *genres.Repo
	links     *watchlinks.Repo
	resolver  *dedup.Resolver
	localizer *localize.Localizer
	mirror    *imagestore.Mirror
	finder    *linkfinder.Engine
	lookup    GenreLookup
	opts      Options
	log       logrus.FieldLogger
}

func New(d Deps, opts Options) *Orchestrator {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	loc := d.Localizer
	if loc == nil {
		loc = localize.New(localize.Nop{}, log)
	}
	return &Orchestrator{
		shows:     d.Shows,
		genres:    d.Genres,
		links:     d.Links,
		resolver:  dedup.NewResolver(d.Shows),
		localizer: loc,
		mirror:    d.Mirror,
		finder:    d.Finder,
		lookup:    d.Lookup,
		opts:      opts,
		log:       log.WithField("component", "ingest"),
	}
}

// Summary holds the counters of one run. Processed always equals
// Added + Skipped + Failed.
type Summary struct {
	RunID     string        `json:"run_id"`
	Job       string        `json:"job"`
	DryRun    bool          `json:"dry_run"`
	Processed int           `json:"processed"`
	Added     int           `json:"added"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Intended  []string      `json:"intended,omitempty"`
	Duration  time.Duration `json:"duration"`
}

func (s *Summary) intend(format string, args ...any) {
	s.Intended = append(s.Intended, fmt.Sprintf(format, args...))
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s run %s: processed=%d added=%d skipped=%d failed=%d (%s)",
		s.Job, s.RunID, s.Processed, s.Added, s.Skipped, s.Failed, s.Duration.Round(time.Millisecond))
	if s.DryRun {
		fmt.Fprintf(&b, "\ndry run, %d intended changes:", len(s.Intended))
		for _, i := range s.Intended {
			b.WriteString("\n  - " + i)
		}
	}
	return b.String()
}

type outcome int

const (
	added outcome = iota
	skipped
)

// run is one batch: a run id, a logger carrying it and the counters.
type run struct {
	sum     *Summary
	log     logrus.FieldLogger
	started time.Time
	items   int
	planned planned
}

func (o *Orchestrator) start(job string) *run {
	id := uuid.NewString()
	r := &run{
		sum:     &Summary{RunID: id, Job: job, DryRun: o.opts.DryRun},
		log:     o.log.WithFields(logrus.Fields{"run_id": id, "job": job}),
		started: time.Now(),
	}
	r.log.Info("run started")
	return r
}

func (o *Orchestrator) finish(r *run) *Summary {
	r.sum.Duration = time.Since(r.started)
	r.log.WithFields(logrus.Fields{
		"processed": r.sum.Processed,
		"added":     r.sum.Added,
		"skipped":   r.sum.Skipped,
		"failed":    r.sum.Failed,
	}).Info("run finished")
	return r.sum
}

// step waits the inter-item delay, runs fn and counts its outcome. Panics in
// fn are recovered and counted as failures.
func (o *Orchestrator) step(ctx context.Context, r *run, label string, fn func(log logrus.FieldLogger) (outcome, error)) error {
	if r.items > 0 && o.opts.ItemDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.opts.ItemDelay):
		}
	}
	r.items++
	r.sum.Processed++

	log := r.log.WithField("show", label)
	res, err := safely(log, fn)
	switch {
	case err != nil:
		r.sum.Failed++
		log.WithError(err).Warn("item failed")
	case res == added:
		r.sum.Added++
	default:
		r.sum.Skipped++
	}
	return nil
}

func safely(log logrus.FieldLogger, fn func(log logrus.FieldLogger) (outcome, error)) (res outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(log)
}

// Ingest pulls every record from src and either creates a show or merges the
// record into the show it matches. It only returns an error when ctx ends
// the run early; the summary is valid either way.
func (o *Orchestrator) Ingest(ctx context.Context, src scraper.Source, mode dedup.Mode) (*Summary, error) {
	r := o.start("ingest:" + src.Name())
	r.log.Infof("importing from %s (%s mode)", src.Name(), mode)

	for rec, recErr := range src.Records(ctx) {
		err := o.step(ctx, r, rec.DisplayTitle(), func(log logrus.FieldLogger) (outcome, error) {
			if recErr != nil {
				return 0, recErr
			}
			return o.ingestOne(ctx, r, log, rec, mode)
		})
		if err != nil {
			return o.finish(r), err
		}
	}
	return o.finish(r), ctx.Err()
}
