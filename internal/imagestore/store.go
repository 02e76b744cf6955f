package imagestore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/aicha-kelia/drama-aggregator/pkg/utils"
)

// Store accepts raw image bytes and returns a stable public URL.
type Store interface {
	Name() string
	Put(ctx context.Context, key string, data []byte, ext string) (string, error)
}

// ErrDisabled is returned by New when the images backend is "none".
var ErrDisabled = errors.New("imagestore: disabled")

// New builds the store selected by cfg.Backend.
func New(cfg utils.ImagesConfig, fs afero.Fs) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return nil, ErrDisabled
	case "cloudinary":
		return NewCloudinary(cfg.Cloudinary, cfg.Folder)
	case "local":
		if fs == nil {
			fs = afero.NewOsFs()
		}
		return NewLocal(fs, cfg.Local.Dir, cfg.Local.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("imagestore: unknown backend %q", cfg.Backend)
	}
}

// Local writes images under Dir and serves them from PublicBaseURL.
type Local struct {
	fs        afero.Fs
	dir       string
	publicURL string
}

func NewLocal(fs afero.Fs, dir, publicBaseURL string) *Local {
	return &Local{fs: fs, dir: dir, publicURL: strings.TrimRight(publicBaseURL, "/")}
}

func (l *Local) Name() string { return "local" }

// Put never overwrites: an existing file with the same key is reused.
func (l *Local) Put(_ context.Context, key string, data []byte, ext string) (string, error) {
	name := key + ext
	full := path.Join(l.dir, name)

	exists, err := afero.Exists(l.fs, full)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", full, err)
	}
	if !exists {
		if err := l.fs.MkdirAll(l.dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", l.dir, err)
		}
		if err := afero.WriteFile(l.fs, full, data, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", full, err)
		}
	}
	return l.publicURL + "/" + name, nil
}
