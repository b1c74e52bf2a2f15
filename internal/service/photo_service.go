package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/photo-contest-api/internal/dto"
	"github.com/noah-isme/photo-contest-api/internal/models"
	"github.com/noah-isme/photo-contest-api/internal/repository"
)

// ErrStorageUnavailable indicates the photo could not be stored.
var ErrStorageUnavailable = errors.New("photo storage unavailable")

// PhotoStorage hosts contest images under the photo id.
type PhotoStorage interface {
	Upload(ctx context.Context, photoID string, reader io.Reader) (string, error)
}

// PhotoService registers contest entries. Aggregates are never touched here.
type PhotoService interface {
	Register(ctx context.Context, photoID string, file *multipart.FileHeader) (dto.PhotoResponse, error)
	Import(ctx context.Context, items []dto.PhotoImport) (int64, error)
}

type photoService struct {
	repo      repository.PhotoRepository
	storage   PhotoStorage
	validator *validator.Validate
	maxBytes  int64
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewPhotoService constructs the photo registration service. storage may be
// nil when only Import is used.
func NewPhotoService(repo repository.PhotoRepository, storage PhotoStorage, validate *validator.Validate, maxBytes int64, logger zerolog.Logger) PhotoService {
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	return &photoService{
		repo:      repo,
		storage:   storage,
		validator: validate,
		maxBytes:  maxBytes,
		logger:    logger.With().Str("component", "photo_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/photo-contest-api/internal/service/photo"),
	}
}

func (s *photoService) Register(ctx context.Context, photoID string, file *multipart.FileHeader) (dto.PhotoResponse, error) {
	photoID = strings.TrimSpace(photoID)
	ctx, span := s.tracer.Start(ctx, "photos.register", trace.WithAttributes(attribute.String("photo.id", photoID)))
	defer span.End()

	if err := validatePhotoID(photoID); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.PhotoResponse{}, err
	}
	if file == nil {
		return dto.PhotoResponse{}, newValidationError(ErrInvalidAttachment, "file", "required", "file is required")
	}
	if file.Size > s.maxBytes {
		return dto.PhotoResponse{}, newValidationError(ErrInvalidAttachment, "file", "size",
			"file must not exceed %s", humanBytes(s.maxBytes))
	}
	if s.storage == nil {
		return dto.PhotoResponse{}, fmt.Errorf("%w: no storage configured", ErrStorageUnavailable)
	}

	data, err := readLimited(file, s.maxBytes)
	if err != nil {
		span.RecordError(err)
		return dto.PhotoResponse{}, err
	}
	if int64(len(data)) > s.maxBytes {
		return dto.PhotoResponse{}, newValidationError(ErrInvalidAttachment, "file", "size",
			"file must not exceed %s", humanBytes(s.maxBytes))
	}

	detected := normalizeImageType(mimetype.Detect(data).String())
	if detected != "image/jpeg" && detected != "image/png" {
		return dto.PhotoResponse{}, newValidationError(ErrInvalidAttachment, "file", "content",
			"file content is %q, expected a JPEG or PNG image", detected)
	}

	url, err := s.storage.Upload(ctx, photoID, bytes.NewReader(data))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.PhotoResponse{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	photo := models.Photo{ID: photoID, URL: url}
	if err := s.repo.Upsert(ctx, &photo); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.PhotoResponse{}, err
	}

	stored, err := s.repo.GetByID(ctx, photoID)
	if err != nil {
		return dto.PhotoResponse{}, err
	}

	s.logger.Info().Str("photo_id", photoID).Msg("photo registered")
	span.SetStatus(codes.Ok, "registered")
	return dto.NewPhotoResponse(stored), nil
}

func (s *photoService) Import(ctx context.Context, items []dto.PhotoImport) (int64, error) {
	photos := make([]models.Photo, 0, len(items))
	for i, item := range items {
		item.ID = strings.TrimSpace(item.ID)
		item.URL = strings.TrimSpace(item.URL)
		if err := s.validator.Struct(item); err != nil {
			var validationErr *ValidationError
			if errors.As(fromValidator(err), &validationErr) {
				validationErr.Field = fmt.Sprintf("items[%d].%s", i, validationErr.Field)
				return 0, validationErr
			}
			return 0, err
		}
		photos = append(photos, models.Photo{ID: item.ID, URL: item.URL})
	}

	affected, err := s.repo.UpsertBatch(ctx, photos)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("rows", affected).Msg("photos imported")
	return affected, nil
}

func validatePhotoID(id string) error {
	if id == "" {
		return newValidationError(ErrValidation, "id", "required", "id is required")
	}
	if len(id) > 128 {
		return newValidationError(ErrValidation, "id", "max", "id must be at most 128 characters")
	}
	if strings.ContainsAny(id, "/\\") {
		return newValidationError(ErrValidation, "id", "format", "id must not contain path separators")
	}
	return nil
}
