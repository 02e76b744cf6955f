package imagestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/aicha-kelia/drama-aggregator/internal/fetch"
)

// Mirror copies an external poster into a Store.
type Mirror struct {
	Store    Store
	client   *fetch.Client
	attempts uint
	delay    time.Duration
	log      logrus.FieldLogger
}

func NewMirror(store Store, client *fetch.Client, attempts uint, delay time.Duration, log logrus.FieldLogger) *Mirror {
	if attempts == 0 {
		attempts = 3
	}
	return &Mirror{
		Store:    store,
		client:   client,
		attempts: attempts,
		delay:    delay,
		log:      log.WithField("component", "imagestore"),
	}
}

// Copy downloads sourceURL, checks it really is an image and uploads it
// under key. Uploads are retried with a fixed delay; the download is not.
func (m *Mirror) Copy(ctx context.Context, sourceURL, key string) (string, error) {
	page, err := m.client.Get(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("download poster: %w", err)
	}

	mt := mimetype.Detect(page.Body)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("poster %s is %s, not an image", sourceURL, mt.String())
	}

	var out string
	err = retry.Do(
		func() error {
			u, err := m.Store.Put(ctx, key, page.Body, mt.Extension())
			if err != nil {
				return err
			}
			out = u
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(m.attempts),
		retry.Delay(m.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			m.log.WithError(err).WithField("attempt", n+1).Warnf("upload to %s failed, retrying", m.Store.Name())
		}),
	)
	if err != nil {
		return "", fmt.Errorf("upload poster: %w", err)
	}
	return out, nil
}

// ShowKey is the storage key for a show's poster.
func ShowKey(showID int64) string {
	return fmt.Sprintf("show_%d", showID)
}
