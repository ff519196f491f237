package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type cloudinaryStorage struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryStorage(cloudName, apiKey, apiSecret string) (ObjectStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &cloudinaryStorage{cld: cld}, nil
}

// Upload stores data under the key without its extension as the public id.
func (s *cloudinaryStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (*UploadResult, error) {
	publicID := strings.TrimSuffix(key, path.Ext(key))
	res, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     publicID,
		ResourceType: "image",
		Overwrite:    api.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary rejected upload: %s", res.Error.Message)
	}
	return &UploadResult{
		URL:          res.SecureURL,
		ResourceType: res.ResourceType,
		Ref:          res.PublicID,
	}, nil
}

func (s *cloudinaryStorage) Delete(ctx context.Context, ref string) error {
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: ref, ResourceType: "image"})
	if err != nil {
		return fmt.Errorf("failed to delete %s from Cloudinary: %w", ref, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary rejected delete of %s: %s", ref, res.Error.Message)
	}
	return nil
}
