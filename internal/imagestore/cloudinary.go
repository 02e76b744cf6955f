package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/aicha-kelia/drama-aggregator/pkg/utils"
)

type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// Cloudinary uploads into a folder of a Cloudinary account.
type Cloudinary struct {
	upload uploadAPI
	folder string
}

func NewCloudinary(cfg utils.CloudinaryConfig, folder string) (*Cloudinary, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("imagestore: cloudinary credentials are not configured")
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}
	return &Cloudinary{upload: &cld.Upload, folder: folder}, nil
}

func (c *Cloudinary) Name() string { return "cloudinary" }

// Put uploads without overwriting an existing asset of the same public id.
func (c *Cloudinary) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	res, err := c.upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:  key,
		Folder:    c.folder,
		Overwrite: api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", errors.New("cloudinary upload: empty secure_url")
	}
	return res.SecureURL, nil
}
