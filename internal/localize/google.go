package localize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-querystring/query"

	"github.com/aicha-kelia/drama-aggregator/internal/fetch"
	"github.com/aicha-kelia/drama-aggregator/pkg/utils"
)

// GoogleTranslator calls the public translate_a/single endpoint.
type GoogleTranslator struct {
	client  *fetch.Client
	baseURL string
	target  string
	key     string
}

type singleParams struct {
	Client string `url:"client"`
	Source string `url:"sl"`
	Target string `url:"tl"`
	DT     string `url:"dt"`
	Text   string `url:"q"`
	Key    string `url:"key,omitempty"`
}

func NewGoogleTranslator(cfg utils.ClientConfig) *GoogleTranslator {
	target := cfg.Language
	if target == "" {
		target = "ar"
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://translate.googleapis.com"
	}
	return &GoogleTranslator{
		client: fetch.New(fetch.Options{
			Timeout:        cfg.Timeout,
			RateLimitDelay: cfg.RateLimitDelay,
			UserAgent:      cfg.UserAgent,
		}),
		baseURL: base,
		target:  target,
		key:     cfg.APIKey,
	}
}

func (g *GoogleTranslator) Translate(ctx context.Context, text string) (string, error) {
	v, err := query.Values(singleParams{
		Client: "gtx",
		Source: "auto",
		Target: g.target,
		DT:     "t",
		Text:   text,
		Key:    g.key,
	})
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}

	page, err := g.client.Get(ctx, g.baseURL+"/translate_a/single?"+v.Encode())
	if err != nil {
		return "", err
	}
	return parseSingle(page.Body)
}

// parseSingle joins the translated segments of a translate_a/single
// response: [[["seg", "orig", ...], ...], ...].
func parseSingle(body []byte) (string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("decode translation: %w", err)
	}
	if len(raw) == 0 {
		return "", errors.New("empty translation response")
	}

	var segments [][]any
	if err := json.Unmarshal(raw[0], &segments); err != nil {
		return "", fmt.Errorf("decode translation segments: %w", err)
	}

	var b strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			b.WriteString(s)
		}
	}
	return b.String(), nil
}
