package localize

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Placeholder is returned for blank input.
const Placeholder = "لا يوجد وصف"

// Translator turns text into the target language.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Localizer wraps a Translator and never fails: any error, panic or blank
// result falls back to the input text (or Placeholder when the input is blank).
type Localizer struct {
	tr  Translator
	log logrus.FieldLogger
}

func New(tr Translator, log logrus.FieldLogger) *Localizer {
	return &Localizer{tr: tr, log: log.WithField("component", "localize")}
}

// Localize returns an Arabic rendition of text. The result is never empty.
func (l *Localizer) Localize(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return Placeholder
	}
	return l.translate(ctx, text)
}

// LocalizeName is Localize for short names (genres, titles). Blank input
// stays blank so callers can tell "nothing to translate" apart.
func (l *Localizer) LocalizeName(ctx context.Context, name string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}
	return l.translate(ctx, name)
}

func (l *Localizer) translate(ctx context.Context, text string) (out string) {
	if l == nil || l.tr == nil {
		return text
	}

	defer func() {
		if r := recover(); r != nil {
			l.log.WithField("panic", fmt.Sprint(r)).Warn("translator panicked, keeping original text")
			out = text
		}
	}()

	res, err := l.tr.Translate(ctx, text)
	if err != nil {
		l.log.WithError(err).Warn("translation failed, keeping original text")
		return text
	}
	if strings.TrimSpace(res) == "" {
		l.log.Debug("translation came back empty, keeping original text")
		return text
	}
	return strings.TrimSpace(res)
}

// Nop is a Translator that returns its input unchanged.
type Nop struct{}

func (Nop) Translate(_ context.Context, text string) (string, error) { return text, nil }
