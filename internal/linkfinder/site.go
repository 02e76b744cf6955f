package linkfinder

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

// Site is one content site searched for watch pages. Search URLs carry a
// {query} placeholder.
type Site struct {
	Name       string   `yaml:"name"`
	BaseURL    string   `yaml:"base_url"`
	SearchURLs []string `yaml:"search_urls"`
	Countries  []string `yaml:"countries"` // empty means every country
	Language   string   `yaml:"language"`
	Disabled   bool     `yaml:"disabled"`

	host string
}

// Hosts reports whether the site carries shows from country. Shows with no
// country are tried everywhere.
func (s Site) Hosts(country string) bool {
	if country == "" || len(s.Countries) == 0 {
		return true
	}
	return slices.Contains(s.Countries, country)
}

func (s *Site) init() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("site without a name")
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("site %s: invalid base_url %q", s.Name, s.BaseURL)
	}
	s.host = bareHost(u.Host)
	if len(s.SearchURLs) == 0 {
		return fmt.Errorf("site %s: no search_urls", s.Name)
	}
	for _, t := range s.SearchURLs {
		if !strings.Contains(t, "{query}") {
			return fmt.Errorf("site %s: search url %q has no {query}", s.Name, t)
		}
	}
	for i, c := range s.Countries {
		n := models.NormalizeCountry(c)
		if n == "" {
			return fmt.Errorf("site %s: unknown country %q", s.Name, c)
		}
		s.Countries[i] = n
	}
	s.Language = models.NormalizeLanguage(s.Language)
	return nil
}

// LoadSites reads the sites section of a sites file.
func LoadSites(path string) ([]Site, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites: %w", err)
	}
	return ParseSites(b)
}

func ParseSites(b []byte) ([]Site, error) {
	var doc struct {
		Sites []Site `yaml:"sites"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse sites: %w", err)
	}
	seen := map[string]bool{}
	for i := range doc.Sites {
		if err := doc.Sites[i].init(); err != nil {
			return nil, err
		}
		if seen[doc.Sites[i].Name] {
			return nil, fmt.Errorf("site %s listed twice", doc.Sites[i].Name)
		}
		seen[doc.Sites[i].Name] = true
	}
	return doc.Sites, nil
}

// FilterSites keeps the named sites (case-insensitive); no names keeps all.
func FilterSites(sites []Site, names ...string) []Site {
	if len(names) == 0 {
		return sites
	}
	var out []Site
	for _, s := range sites {
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(n), s.Name) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func bareHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(h), "www.")
}
