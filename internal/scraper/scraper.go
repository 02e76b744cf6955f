package scraper

import (
	"context"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

// Source is implemented by each external data source (API / HTML / bulk file).
// Each source fetches its own data format and maps it into ShowCanonical.
// A non-nil error in the sequence marks a single failed item; the sequence
// ends when the source has nothing more to give.
type Source interface {
	Name() string
	Records(ctx context.Context) iter.Seq2[models.ShowCanonical, error]
}

// Chain yields the records of every source in turn. Records describing the
// same show are passed through as they are; the dedup resolver decides what
// matches, so seasons that only differ by year or country stay apart.
type Chain struct {
	Sources []Source
	Log     logrus.FieldLogger
}

func NewChain(log logrus.FieldLogger, sources ...Source) *Chain {
	return &Chain{Sources: sources, Log: log.WithField("component", "scraper")}
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

func (c *Chain) Records(ctx context.Context) iter.Seq2[models.ShowCanonical, error] {
	return func(yield func(models.ShowCanonical, error) bool) {
		for _, src := range c.Sources {
			c.Log.WithField("source", src.Name()).Info("fetching")
			for rec, err := range src.Records(ctx) {
				if !yield(rec, err) {
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func appendIfMissing(slice []string, v string) []string {
	for _, x := range slice {
		if x == v {
			return slice
		}
	}
	return append(slice, v)
}

func mergeStringSlices(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		out = appendIfMissing(out, v)
	}
	for _, v := range b {
		out = appendIfMissing(out, v)
	}
	return out
}

var (
	yearRe   = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	digitsRe = regexp.MustCompile(`\d+`)
)

// parseYear finds the first plausible year in s; nil when there is none.
func parseYear(s string) *int {
	m := yearRe.FindString(s)
	if m == "" {
		return nil
	}
	y, _ := strconv.Atoi(m)
	return models.Year(y)
}

// parseInt returns the first run of digits in s, or 0.
func parseInt(s string) int {
	m := digitsRe.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func hasArabic(s string) bool {
	for _, r := range s {
		if r >= 0x0600 && r <= 0x06FF {
			return true
		}
	}
	return false
}
