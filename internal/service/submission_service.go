package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/photo-contest-api/internal/dto"
	"github.com/noah-isme/photo-contest-api/internal/mailer"
	"github.com/noah-isme/photo-contest-api/internal/observability"
	"github.com/noah-isme/photo-contest-api/internal/ratelimit"
)

// SubmissionPolicy is the acceptance policy for contest applications.
type SubmissionPolicy struct {
	StudentDomain     string
	StaffDomain       string
	AllowedImageTypes []string
	MinFileBytes      int64
	MaxFileBytes      int64
	MinAttachments    int
	MaxAttachments    int
	MaxTotalBytes     int64
	AdminEmail        string
}

// SubmissionInput is one application as received from the HTTP layer.
// PhotoTitles is the raw JSON array string.
type SubmissionInput struct {
	ClientAddress string
	FullName      string
	IDNumber      string
	Email         string
	UserType      string
	PhotoTitles   string
	Photos        []*multipart.FileHeader
}

// SubmissionService validates applications and forwards them by mail.
type SubmissionService interface {
	Submit(ctx context.Context, input SubmissionInput) (dto.ApplicationResponse, error)
}

type submissionService struct {
	limiter   ratelimit.Limiter
	mailer    mailer.Mailer
	validator *validator.Validate
	policy    SubmissionPolicy
	allowed   map[string]struct{}
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewSubmissionService constructs the submission gatekeeper.
func NewSubmissionService(limiter ratelimit.Limiter, mail mailer.Mailer, validate *validator.Validate, policy SubmissionPolicy, logger zerolog.Logger) SubmissionService {
	allowed := make(map[string]struct{}, len(policy.AllowedImageTypes))
	for _, t := range policy.AllowedImageTypes {
		allowed[normalizeImageType(t)] = struct{}{}
	}

	return &submissionService{
		limiter:   limiter,
		mailer:    mail,
		validator: validate,
		policy:    policy,
		allowed:   allowed,
		logger:    logger.With().Str("component", "submission_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/photo-contest-api/internal/service/submission"),
		now:       time.Now,
	}
}

type acceptedPhoto struct {
	header      *multipart.FileHeader
	title       string
	contentType string
}

func (s *submissionService) Submit(ctx context.Context, input SubmissionInput) (dto.ApplicationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.Int("submission.photo_count", len(input.Photos)),
		attribute.String("submission.user_type", input.UserType),
	))
	defer span.End()

	if err := s.checkRateLimit(ctx, input.ClientAddress); err != nil {
		span.SetStatus(codes.Error, "rate limited")
		observability.Submissions().WithLabelValues("rate_limited").Inc()
		return dto.ApplicationResponse{}, err
	}

	req, err := s.validateRequest(input)
	if err != nil {
		return dto.ApplicationResponse{}, s.reject(span, err)
	}

	photos, err := s.checkAttachmentMetadata(input.Photos, req.PhotoTitles)
	if err != nil {
		return dto.ApplicationResponse{}, s.reject(span, err)
	}

	attachments, err := s.readAttachments(photos)
	if err != nil {
		return dto.ApplicationResponse{}, s.reject(span, err)
	}

	referenceID := uuid.NewString()
	receivedAt := s.now().UTC()
	names := make([]string, len(attachments))
	for i, a := range attachments {
		names[i] = a.Filename
	}

	admin := s.adminNotification(referenceID, receivedAt, req, attachments)
	if err := s.mailer.Send(ctx, admin); err != nil {
		observability.MailDeliveries().WithLabelValues("admin", "failed").Inc()
		observability.Submissions().WithLabelValues("mail_failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "admin notification failed")
		s.logger.Error().Err(err).
			Str("reference_id", referenceID).
			Str("email", maskEmailAddress(req.Email)).
			Msg("admin notification failed")
		return dto.ApplicationResponse{}, fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}
	observability.MailDeliveries().WithLabelValues("admin", "sent").Inc()

	if err := s.mailer.Send(ctx, s.confirmation(referenceID, req, names)); err != nil {
		observability.MailDeliveries().WithLabelValues("confirmation", "failed").Inc()
		s.logger.Warn().Err(err).
			Str("reference_id", referenceID).
			Str("email", maskEmailAddress(req.Email)).
			Msg("applicant confirmation failed")
	} else {
		observability.MailDeliveries().WithLabelValues("confirmation", "sent").Inc()
	}

	observability.Submissions().WithLabelValues("accepted").Inc()
	span.SetAttributes(attribute.String("submission.reference_id", referenceID))
	span.SetStatus(codes.Ok, "forwarded")

	s.logger.Info().
		Str("reference_id", referenceID).
		Str("email", maskEmailAddress(req.Email)).
		Int("photos", len(attachments)).
		Msg("application forwarded")

	return dto.ApplicationResponse{
		ReferenceID: referenceID,
		Attachments: names,
		ReceivedAt:  receivedAt,
	}, nil
}

func (s *submissionService) reject(span trace.Span, err error) error {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		observability.Submissions().WithLabelValues("rejected").Inc()
		span.SetAttributes(attribute.String("submission.rejected_field", validationErr.Field))
		span.SetStatus(codes.Error, "validation failed")
		return err
	}
	observability.Submissions().WithLabelValues("error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "attachment read failed")
	return err
}

func (s *submissionService) checkRateLimit(ctx context.Context, address string) error {
	if s.limiter == nil {
		return nil
	}
	if address == "" {
		address = "unknown"
	}

	decision, err := s.limiter.Allow(ctx, "submission:"+address)
	if err != nil {
		s.logger.Warn().Err(err).Msg("rate limiter unavailable, admitting request")
		return nil
	}
	if !decision.Allowed {
		observability.RateLimited().WithLabelValues("submission").Inc()
		return &RateLimitError{RetryAfter: decision.RetryAfter}
	}
	return nil
}

func (s *submissionService) validateRequest(input SubmissionInput) (dto.ApplicationRequest, error) {
	req := dto.ApplicationRequest{
		FullName: strings.TrimSpace(input.FullName),
		IDNumber: strings.TrimSpace(input.IDNumber),
		Email:    normalizeEmail(input.Email),
		UserType: strings.ToLower(strings.TrimSpace(input.UserType)),
	}

	rawTitles := strings.TrimSpace(input.PhotoTitles)
	if rawTitles != "" {
		var titles []string
		if err := json.Unmarshal([]byte(rawTitles), &titles); err != nil {
			return req, newValidationError(ErrValidation, "photoTitles", "json", "photoTitles must be a JSON array of strings")
		}
		for _, title := range titles {
			req.PhotoTitles = append(req.PhotoTitles, strings.TrimSpace(title))
		}
	}

	if err := s.validator.Struct(req); err != nil {
		return req, fromValidator(err)
	}

	domain := emailDomain(req.Email)
	switch req.UserType {
	case dto.UserTypeStudent:
		if domain != s.policy.StudentDomain {
			return req, newValidationError(ErrInvalidDomain, "email", "domain",
				"students must apply with an @%s address", s.policy.StudentDomain)
		}
	case dto.UserTypeStaff:
		if domain != s.policy.StaffDomain {
			return req, newValidationError(ErrInvalidDomain, "email", "domain",
				"staff must apply with an @%s address", s.policy.StaffDomain)
		}
	}

	return req, nil
}

// checkAttachmentMetadata applies every rule that needs no file content.
func (s *submissionService) checkAttachmentMetadata(files []*multipart.FileHeader, titles []string) ([]acceptedPhoto, error) {
	count := len(files)
	if count < s.policy.MinAttachments || count > s.policy.MaxAttachments {
		return nil, newValidationError(ErrInvalidAttachment, "photos", "count",
			"between %d and %d photos are required, got %d", s.policy.MinAttachments, s.policy.MaxAttachments, count)
	}
	if len(titles) != count {
		return nil, newValidationError(ErrValidation, "photoTitles", "count",
			"one title is required per photo: got %d titles for %d photos", len(titles), count)
	}

	photos := make([]acceptedPhoto, 0, count)
	var total int64
	for i, header := range files {
		if header == nil {
			return nil, newValidationError(ErrInvalidAttachment, fmt.Sprintf("photos[%d]", i), "required", "photo %d is missing", i+1)
		}

		declared := normalizeImageType(header.Header.Get("Content-Type"))
		if _, ok := s.allowed[declared]; !ok {
			observability.Submissions().WithLabelValues("bad_type").Inc()
			return nil, newValidationError(ErrInvalidAttachment, fmt.Sprintf("photos[%d]", i), "type",
				"photo %d has unsupported type %q, allowed: %s", i+1, declared, strings.Join(s.policy.AllowedImageTypes, ", "))
		}

		if err := s.checkSize(i, header.Size); err != nil {
			return nil, err
		}

		total += header.Size
		photos = append(photos, acceptedPhoto{header: header, title: titles[i], contentType: declared})
	}

	if total > s.policy.MaxTotalBytes {
		return nil, newValidationError(ErrInvalidAttachment, "photos", "total_size",
			"photos together must not exceed %s, got %s", humanBytes(s.policy.MaxTotalBytes), humanBytes(total))
	}

	return photos, nil
}

func (s *submissionService) checkSize(index int, size int64) error {
	if size < s.policy.MinFileBytes || size > s.policy.MaxFileBytes {
		return newValidationError(ErrInvalidAttachment, fmt.Sprintf("photos[%d]", index), "size",
			"photo %d must be between %s and %s, got %s", index+1,
			humanBytes(s.policy.MinFileBytes), humanBytes(s.policy.MaxFileBytes), humanBytes(size))
	}
	return nil
}

func (s *submissionService) readAttachments(photos []acceptedPhoto) ([]mailer.Attachment, error) {
	attachments := make([]mailer.Attachment, 0, len(photos))
	names := make([]string, 0, len(photos))

	for i, photo := range photos {
		data, err := readLimited(photo.header, s.policy.MaxFileBytes)
		if err != nil {
			return nil, fmt.Errorf("read photo %d: %w", i+1, err)
		}
		if err := s.checkSize(i, int64(len(data))); err != nil {
			return nil, err
		}

		detected := normalizeImageType(mimetype.Detect(data).String())
		if _, ok := s.allowed[detected]; !ok {
			observability.Submissions().WithLabelValues("bad_content").Inc()
			return nil, newValidationError(ErrInvalidAttachment, fmt.Sprintf("photos[%d]", i), "content",
				"photo %d content is %q, which does not match an allowed image type", i+1, detected)
		}

		names = append(names, attachmentFileName(photo.title, i, detected))
		attachments = append(attachments, mailer.Attachment{ContentType: detected, Data: data})
	}

	for i, name := range uniqueFileNames(names) {
		attachments[i].Filename = name
	}
	return attachments, nil
}

func (s *submissionService) adminNotification(referenceID string, receivedAt time.Time, req dto.ApplicationRequest, attachments []mailer.Attachment) mailer.Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Reference: %s\n", referenceID)
	fmt.Fprintf(&body, "Received: %s\n\n", receivedAt.Format(time.RFC3339))
	fmt.Fprintf(&body, "Full name: %s\n", req.FullName)
	fmt.Fprintf(&body, "ID number: %s\n", req.IDNumber)
	fmt.Fprintf(&body, "Email: %s\n", req.Email)
	fmt.Fprintf(&body, "Applicant type: %s\n\n", userTypeLabel(req.UserType))
	body.WriteString("Photos:\n")
	for i, a := range attachments {
		fmt.Fprintf(&body, "%d. %s (%s, %s)\n", i+1, req.PhotoTitles[i], a.Filename, humanBytes(int64(len(a.Data))))
	}

	return mailer.Message{
		To:          []string{s.policy.AdminEmail},
		ReplyTo:     req.Email,
		Subject:     fmt.Sprintf("New contest application: %s - %s - %s", userTypeLabel(req.UserType), req.IDNumber, req.FullName),
		Body:        body.String(),
		Attachments: attachments,
	}
}

func (s *submissionService) confirmation(referenceID string, req dto.ApplicationRequest, names []string) mailer.Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Dear %s,\n\n", req.FullName)
	body.WriteString("Your photo contest application has been received.\n")
	fmt.Fprintf(&body, "Reference: %s\n", referenceID)
	fmt.Fprintf(&body, "Photos received: %d\n", len(names))
	for _, title := range req.PhotoTitles {
		fmt.Fprintf(&body, "- %s\n", title)
	}

	return mailer.Message{
		To:      []string{req.Email},
		Subject: "Your photo contest application was received",
		Body:    body.String(),
	}
}

func readLimited(header *multipart.FileHeader, max int64) ([]byte, error) {
	handle, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(make([]byte, 0, header.Size))
	if _, err := io.Copy(buf, io.LimitReader(handle, max+1)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalizeImageType lowercases a media type, drops parameters, and folds the
// non-standard image/jpg alias.
func normalizeImageType(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if parsed, _, err := mime.ParseMediaType(value); err == nil {
		value = parsed
	}
	switch value {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	}
	return value
}

func userTypeLabel(userType string) string {
	if userType == dto.UserTypeStaff {
		return "Staff"
	}
	return "Student"
}

func humanBytes(n int64) string {
	const unit = 1 << 20
	return fmt.Sprintf("%.1f MiB", float64(n)/unit)
}
