package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores contest photos in Cloudinary under a deterministic public id.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload stores the image under the photo id and returns its secure URL.
// Uploading the same id again replaces the asset.
func (s *Service) Upload(ctx context.Context, photoID string, reader io.Reader) (string, error) {
	publicID, err := BuildPublicID(photoID)
	if err != nil {
		return "", err
	}

	params := uploader.UploadParams{
		Folder:         strings.Trim(s.folder, "/"),
		PublicID:       publicID,
		ResourceType:   "image",
		Overwrite:      api.Bool(true),
		UniqueFilename: api.Bool(false),
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected photo: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("photo uploaded to cloudinary")

	return result.SecureURL, nil
}

// BuildPublicID derives a stable Cloudinary public id from a photo id.
func BuildPublicID(photoID string) (string, error) {
	base := strings.TrimSuffix(photoID, filepath.Ext(photoID))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		return "", fmt.Errorf("photo id %q yields an empty public id", photoID)
	}
	return base, nil
}
