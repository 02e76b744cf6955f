package linkfinder

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/aicha-kelia/drama-aggregator/internal/fetch"
	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

// State is a step of the per-(show, site) discovery state machine.
type State string

const (
	SiteSkipped           State = "site_skipped"
	Searching             State = "searching"
	CandidatesFound       State = "candidates_found"
	NoCandidates          State = "no_candidates"
	Validating            State = "validating"
	Validated             State = "validated"
	AllCandidatesRejected State = "all_candidates_rejected"
	Saved                 State = "saved"
	Kept                  State = "kept"   // existing link still valid
	Failed                State = "failed" // store error
)

// LinkStore is the watch link persistence the engine needs.
type LinkStore interface {
	GetBySite(ctx context.Context, showID int64, site string) (*models.WatchLink, error)
	Upsert(ctx context.Context, l models.WatchLink) error
	Delete(ctx context.Context, showID int64, site string) (bool, error)
}

// PosterStore records a poster found on a watch page.
type PosterStore interface {
	SetPosterURLIfEmpty(ctx context.Context, showID int64, url string) (bool, error)
}

type Options struct {
	MinCandidates  int
	MaxCandidates  int
	MaxValidations int
	MinScore       int
	SiteDelay      time.Duration
	DryRun         bool
}

func (o Options) withDefaults() Options {
	if o.MinCandidates <= 0 {
		o.MinCandidates = 5
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = 10
	}
	if o.MaxValidations <= 0 {
		o.MaxValidations = 10
	}
	if o.MinScore <= 0 {
		o.MinScore = 3
	}
	return o
}

// Rejection records why a candidate page was discarded.
type Rejection struct {
	URL    string
	Reason string
}

// SiteResult is the outcome for one (show, site) pair.
type SiteResult struct {
	Site       string
	State      State
	Trace      []State
	URL        string
	Episodes   int
	Poster     string
	Removed    string // stale URL deleted during revalidation
	Candidates []string
	Rejections []Rejection
	Err        error
}

func (r *SiteResult) enter(s State) {
	r.State = s
	r.Trace = append(r.Trace, s)
}

// Result aggregates one show's run over every site.
type Result struct {
	ShowID       int64
	Sites        []SiteResult
	PosterSet    string
	PosterFailed error
}

// Count returns how many sites ended in state s.
func (r Result) Count(s State) int {
	n := 0
	for _, sr := range r.Sites {
		if sr.State == s {
			n++
		}
	}
	return n
}

// Engine searches content sites for a show's watch pages, validates them and
// stores at most one link per site.
type Engine struct {
	client  *fetch.Client
	sites   []Site
	links   LinkStore
	posters PosterStore
	opts    Options
	log     logrus.FieldLogger
}

func NewEngine(client *fetch.Client, sites []Site, links LinkStore, posters PosterStore, opts Options, log logrus.FieldLogger) *Engine {
	return &Engine{
		client:  client,
		sites:   sites,
		links:   links,
		posters: posters,
		opts:    opts.withDefaults(),
		log:     log.WithField("component", "linkfinder"),
	}
}

// Sites returns the configured site list.
func (e *Engine) Sites() []Site { return e.sites }

// Discover runs every enabled site for show. Per-site failures are recorded
// in the result; nothing here aborts the run.
func (e *Engine) Discover(ctx context.Context, show models.Show) Result {
	res := Result{ShowID: show.ID}
	hasPoster := show.HasPoster()

	first := true
	for _, site := range e.sites {
		if site.Disabled {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if !first && e.opts.SiteDelay > 0 && site.Hosts(show.Country) {
			select {
			case <-ctx.Done():
				return res
			case <-time.After(e.opts.SiteDelay):
			}
		}

		sr := e.ForSite(ctx, show, site)
		if sr.State != SiteSkipped {
			first = false
		}

		if sr.State == Saved && sr.Poster != "" && !hasPoster {
			if e.opts.DryRun {
				res.PosterSet = sr.Poster
				hasPoster = true
			} else if ok, err := e.posters.SetPosterURLIfEmpty(ctx, show.ID, sr.Poster); err != nil {
				res.PosterFailed = err
			} else if ok {
				res.PosterSet = sr.Poster
				hasPoster = true
			}
		}
		res.Sites = append(res.Sites, sr)
	}
	return res
}

// ForSite walks the state machine for one site.
func (e *Engine) ForSite(ctx context.Context, show models.Show, site Site) SiteResult {
	sr := SiteResult{Site: site.Name}
	log := e.log.WithFields(logrus.Fields{"show": show.DisplayTitle(), "site": site.Name})

	if !site.Hosts(show.Country) {
		sr.enter(SiteSkipped)
		log.Debugf("skipped, site does not carry %s shows", show.Country)
		return sr
	}

	existing, err := e.links.GetBySite(ctx, show.ID, site.Name)
	if err != nil {
		sr.Err = err
		sr.enter(Failed)
		return sr
	}
	if existing != nil {
		if v, err := e.validateURL(ctx, existing.URL, show); err == nil && v.Valid {
			sr.URL = existing.URL
			sr.enter(Kept)
			log.Info("existing link still valid")
			return sr
		} else if err != nil {
			log.WithError(err).Info("existing link unreachable, searching again")
		} else {
			log.Infof("existing link invalid (%s), searching again", v.Reason)
		}

		sr.Removed = existing.URL
		if !e.opts.DryRun {
			if _, err := e.links.Delete(ctx, show.ID, site.Name); err != nil {
				sr.Err = err
				sr.enter(Failed)
				return sr
			}
		}
	}

	sr.enter(Searching)
	variants := QueryVariants(show.Title, show.TitleArabic)
	sr.Candidates = search(ctx, e.client, site, variants, e.opts.MinCandidates, e.opts.MaxCandidates, log.Debugf)
	if len(sr.Candidates) == 0 {
		sr.enter(NoCandidates)
		log.Info("no candidates")
		return sr
	}
	sr.enter(CandidatesFound)
	log.Infof("%d candidates", len(sr.Candidates))

	sr.enter(Validating)
	for i, c := range sr.Candidates {
		if i >= e.opts.MaxValidations || ctx.Err() != nil {
			break
		}
		page, doc, err := e.fetchDoc(ctx, c)
		if err != nil {
			sr.Rejections = append(sr.Rejections, Rejection{URL: c, Reason: "unreachable: " + err.Error()})
			continue
		}
		v := Validate(string(page.Body), doc, show.Title, show.TitleArabic, e.opts.MinScore)
		if !v.Valid {
			sr.Rejections = append(sr.Rejections, Rejection{URL: c, Reason: v.Reason})
			log.WithField("url", c).Debugf("rejected: %s", v.Reason)
			continue
		}

		sr.enter(Validated)
		sr.URL = page.URL.String()
		sr.Poster = ExtractPoster(doc, page.URL)
		sr.Episodes = ExtractEpisodes(doc.Find("body").Text())
		if sr.Episodes == 0 {
			sr.Episodes = show.TotalEpisodes
		}
		break
	}
	if sr.State != Validated {
		sr.enter(AllCandidatesRejected)
		log.Infof("all %d candidates rejected", len(sr.Rejections))
		return sr
	}

	if !e.opts.DryRun {
		err := e.links.Upsert(ctx, models.WatchLink{
			ShowID:            show.ID,
			SiteName:          site.Name,
			URL:               sr.URL,
			Language:          site.Language,
			EpisodesAvailable: max(sr.Episodes, 0),
		})
		if err != nil {
			sr.Err = err
			sr.enter(Failed)
			return sr
		}
	}
	sr.enter(Saved)
	log.WithField("url", sr.URL).Info("link saved")
	return sr
}

func (e *Engine) validateURL(ctx context.Context, u string, show models.Show) (Verdict, error) {
	page, doc, err := e.fetchDoc(ctx, u)
	if err != nil {
		return Verdict{}, err
	}
	return Validate(string(page.Body), doc, show.Title, show.TitleArabic, e.opts.MinScore), nil
}

func (e *Engine) fetchDoc(ctx context.Context, u string) (*fetch.Page, *goquery.Document, error) {
	page, err := e.client.Get(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", u, err)
	}
	return page, doc, nil
}
