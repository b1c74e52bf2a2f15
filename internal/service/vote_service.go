package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/photo-contest-api/internal/dto"
	"github.com/noah-isme/photo-contest-api/internal/models"
	"github.com/noah-isme/photo-contest-api/internal/observability"
	"github.com/noah-isme/photo-contest-api/internal/repository"
)

// VoteService records jury votes and serves each juror's own view.
type VoteService interface {
	CastVote(ctx context.Context, photoID, juryEmail string, req dto.VoteRequest) (dto.VoteResponse, error)
	GetVote(ctx context.Context, photoID, juryEmail string) (dto.VoteResponse, error)
	Gallery(ctx context.Context, juryEmail string) ([]dto.GalleryPhoto, error)
}

type voteService struct {
	photos    repository.PhotoRepository
	votes     repository.VoteRepository
	events    VoteEventBus
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	timeout   time.Duration
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewVoteService constructs the vote aggregator. events may be nil.
func NewVoteService(photos repository.PhotoRepository, votes repository.VoteRepository, events VoteEventBus, validate *validator.Validate, timeout time.Duration, logger zerolog.Logger) VoteService {
	return &voteService{
		photos:    photos,
		votes:     votes,
		events:    events,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		timeout:   timeout,
		logger:    logger.With().Str("component", "vote_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/photo-contest-api/internal/service/vote"),
		now:       time.Now,
	}
}

type voteOutcome struct {
	action        string
	previousScore int
	totalScore    int
	voteCount     int
	vote          models.Vote
}

func (s *voteService) CastVote(ctx context.Context, photoID, juryEmail string, req dto.VoteRequest) (dto.VoteResponse, error) {
	photoID = strings.TrimSpace(photoID)
	juryEmail = normalizeEmail(juryEmail)

	ctx, span := s.tracer.Start(ctx, "votes.cast", trace.WithAttributes(
		attribute.String("vote.photo_id", photoID),
		attribute.Int("vote.score", req.Score),
	))
	defer span.End()

	if photoID == "" {
		return dto.VoteResponse{}, newValidationError(ErrValidation, "photoId", "required", "photoId is required")
	}
	if juryEmail == "" {
		return dto.VoteResponse{}, newValidationError(ErrValidation, "juryEmail", "required", "juror identity is required")
	}
	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.VoteResponse{}, fromValidator(err)
	}
	comment := s.cleanComment(req.Comment)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	var outcome voteOutcome
	err := s.votes.WithTransaction(ctx, func(tx repository.VoteTx) error {
		photo, err := tx.LockPhoto(photoID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPhotoNotFound
			}
			return err
		}

		existing, err := tx.FindVote(photoID, juryEmail)
		if err != nil {
			return err
		}

		previous, countDelta, action := 0, 1, models.VoteActionCreate
		if existing != nil {
			previous, countDelta, action = existing.Score, 0, models.VoteActionUpdate
		}
		delta := req.Score - previous

		if err := tx.ApplyDelta(photoID, delta, countDelta); err != nil {
			return err
		}

		vote := models.Vote{
			PhotoID:   photoID,
			JuryEmail: juryEmail,
			Score:     req.Score,
			Comment:   comment,
			VotedAt:   s.now().UTC(),
		}
		if err := tx.SaveVote(&vote, existing == nil); err != nil {
			return err
		}

		entry := models.VoteLog{
			Action:    action,
			JuryEmail: juryEmail,
			PhotoID:   photoID,
			Score:     req.Score,
			Comment:   comment,
			Metadata: datatypes.JSONMap{
				"previous_score": previous,
				"delta":          delta,
			},
		}
		if err := tx.AppendLog(&entry); err != nil {
			return err
		}

		outcome = voteOutcome{
			action:        action,
			previousScore: previous,
			totalScore:    photo.TotalScore + delta,
			voteCount:     photo.VoteCount + countDelta,
			vote:          vote,
		}
		return nil
	})
	observability.VoteLatency().Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrPhotoNotFound) {
			span.SetStatus(codes.Error, "photo not found")
			return dto.VoteResponse{}, ErrPhotoNotFound
		}
		span.SetStatus(codes.Error, "vote not recorded")
		s.logger.Error().Err(err).
			Str("photo_id", photoID).
			Str("juror", maskEmailAddress(juryEmail)).
			Msg("vote transaction failed")
		return dto.VoteResponse{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	observability.VotesCast().WithLabelValues(outcome.action).Inc()
	span.SetAttributes(attribute.String("vote.action", outcome.action))
	span.SetStatus(codes.Ok, "recorded")

	s.logger.Info().
		Str("photo_id", photoID).
		Str("juror", maskEmailAddress(juryEmail)).
		Str("action", outcome.action).
		Int("previous_score", outcome.previousScore).
		Int("score", req.Score).
		Msg("vote recorded")

	if s.events != nil {
		s.events.Publish(context.WithoutCancel(ctx), VoteEvent{
			PhotoID:    photoID,
			Action:     outcome.action,
			Juror:      maskEmailAddress(juryEmail),
			TotalScore: outcome.totalScore,
			VoteCount:  outcome.voteCount,
			Average:    models.FormatAverage(outcome.totalScore, outcome.voteCount),
			At:         outcome.vote.VotedAt,
		})
	}

	response := dto.NewVoteResponse(outcome.vote)
	response.Action = outcome.action
	response.TotalScore = &outcome.totalScore
	response.VoteCount = &outcome.voteCount
	return response, nil
}

func (s *voteService) GetVote(ctx context.Context, photoID, juryEmail string) (dto.VoteResponse, error) {
	vote, err := s.votes.GetVote(ctx, strings.TrimSpace(photoID), normalizeEmail(juryEmail))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.VoteResponse{}, ErrVoteNotFound
		}
		return dto.VoteResponse{}, err
	}
	return dto.NewVoteResponse(vote), nil
}

func (s *voteService) Gallery(ctx context.Context, juryEmail string) ([]dto.GalleryPhoto, error) {
	ctx, span := s.tracer.Start(ctx, "votes.gallery")
	defer span.End()

	photos, err := s.photos.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	mine, err := s.votes.ListByJury(ctx, normalizeEmail(juryEmail))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	byPhoto := make(map[string]models.Vote, len(mine))
	for _, vote := range mine {
		byPhoto[vote.PhotoID] = vote
	}

	gallery := make([]dto.GalleryPhoto, 0, len(photos))
	for _, photo := range photos {
		item := dto.GalleryPhoto{ID: photo.ID, URL: photo.URL}
		if vote, ok := byPhoto[photo.ID]; ok {
			response := dto.NewVoteResponse(vote)
			item.MyVote = &response
			item.IsRated = true
		}
		gallery = append(gallery, item)
	}
	return gallery, nil
}

// cleanComment drops markup and returns the remaining text unescaped.
func (s *voteService) cleanComment(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(raw)))
}
