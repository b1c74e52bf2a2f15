package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/photo-contest-api/internal/dto"
	"github.com/noah-isme/photo-contest-api/internal/models"
	"github.com/noah-isme/photo-contest-api/internal/observability"
	"github.com/noah-isme/photo-contest-api/internal/repository"
)

const rankingCacheKey = "contest:results:ranking"

// ResultsService projects rankings and reports from photos and votes. It never writes.
type ResultsService interface {
	Ranking(ctx context.Context) (dto.RankingResponse, error)
	Report(ctx context.Context) (dto.ReportResponse, error)
	Invalidate(ctx context.Context)
}

type resultsService struct {
	photos       repository.PhotoRepository
	votes        repository.VoteRepository
	participants ParticipantDirectory
	cache        *redis.Client
	cacheTTL     time.Duration
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewResultsService constructs the results projector. cache may be nil.
func NewResultsService(photos repository.PhotoRepository, votes repository.VoteRepository, participants ParticipantDirectory, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ResultsService {
	return &resultsService{
		photos:       photos,
		votes:        votes,
		participants: participants,
		cache:        cache,
		cacheTTL:     ttl,
		logger:       logger.With().Str("component", "results_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/photo-contest-api/internal/service/results"),
		now:          time.Now,
	}
}

func (s *resultsService) Ranking(ctx context.Context) (dto.RankingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "results.ranking")
	defer span.End()

	if cached, ok := s.readCache(ctx, span); ok {
		return cached, nil
	}

	photos, err := s.photos.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_photos_failed")
		return dto.RankingResponse{}, err
	}

	response := dto.RankingResponse{
		Entries:     s.rank(photos),
		GeneratedAt: s.now().UTC(),
	}
	for _, photo := range photos {
		response.TotalVotes += photo.VoteCount
	}
	span.SetAttributes(attribute.Int("results.photo_count", len(photos)))

	s.writeCache(ctx, span, response)
	return response, nil
}

func (s *resultsService) Report(ctx context.Context) (dto.ReportResponse, error) {
	ctx, span := s.tracer.Start(ctx, "results.report")
	defer span.End()

	photos, err := s.photos.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_photos_failed")
		return dto.ReportResponse{}, err
	}
	votes, err := s.votes.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_votes_failed")
		return dto.ReportResponse{}, err
	}

	byPhoto := make(map[string][]dto.ReportVote, len(photos))
	perJuror := make(map[string]int)
	for _, vote := range votes {
		byPhoto[vote.PhotoID] = append(byPhoto[vote.PhotoID], dto.ReportVote{
			JuryEmail: vote.JuryEmail,
			JuryName:  FormatJurorName(vote.JuryEmail),
			Score:     vote.Score,
			Comment:   vote.Comment,
			VotedAt:   vote.VotedAt,
		})
		perJuror[vote.JuryEmail]++
	}

	entries := s.rank(photos)
	report := dto.ReportResponse{
		Photos:      make([]dto.PhotoReport, 0, len(entries)),
		Jury:        juryParticipation(perJuror),
		TotalVotes:  len(votes),
		GeneratedAt: s.now().UTC(),
	}
	for _, entry := range entries {
		photoVotes := byPhoto[entry.PhotoID]
		sort.SliceStable(photoVotes, func(i, j int) bool {
			if photoVotes[i].Score != photoVotes[j].Score {
				return photoVotes[i].Score > photoVotes[j].Score
			}
			return photoVotes[i].JuryEmail < photoVotes[j].JuryEmail
		})
		if photoVotes == nil {
			photoVotes = []dto.ReportVote{}
		}
		report.Photos = append(report.Photos, dto.PhotoReport{RankingEntry: entry, Votes: photoVotes})
	}

	span.SetAttributes(
		attribute.Int("results.photo_count", len(photos)),
		attribute.Int("results.vote_count", len(votes)),
	)
	return report, nil
}

func (s *resultsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, rankingCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate results cache")
	}
}

// rank orders photos by total score, highest first. Photos arrive in
// insertion order and the sort is stable, so ties keep that order.
func (s *resultsService) rank(photos []models.Photo) []dto.RankingEntry {
	ordered := make([]models.Photo, len(photos))
	copy(ordered, photos)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TotalScore > ordered[j].TotalScore
	})

	entries := make([]dto.RankingEntry, 0, len(ordered))
	for i, photo := range ordered {
		entries = append(entries, dto.RankingEntry{
			Rank:        i + 1,
			PhotoID:     photo.ID,
			URL:         photo.URL,
			Participant: s.participants.Name(photo.ID),
			TotalScore:  photo.TotalScore,
			VoteCount:   photo.VoteCount,
			Average:     photo.FormattedAverage(),
		})
	}
	return entries
}

func juryParticipation(counts map[string]int) []dto.JuryParticipation {
	result := make([]dto.JuryParticipation, 0, len(counts))
	for email, count := range counts {
		result = append(result, dto.JuryParticipation{
			JuryEmail: email,
			JuryName:  FormatJurorName(email),
			VoteCount: count,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].VoteCount != result[j].VoteCount {
			return result[i].VoteCount > result[j].VoteCount
		}
		return result[i].JuryEmail < result[j].JuryEmail
	})
	return result
}

func (s *resultsService) readCache(ctx context.Context, span trace.Span) (dto.RankingResponse, bool) {
	if s.cache == nil {
		return dto.RankingResponse{}, false
	}

	cached, err := s.cache.Get(ctx, rankingCacheKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read results cache")
			span.RecordError(err)
		}
		observability.ResultsCache().WithLabelValues("miss").Inc()
		return dto.RankingResponse{}, false
	}

	var response dto.RankingResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		observability.ResultsCache().WithLabelValues("miss").Inc()
		return dto.RankingResponse{}, false
	}

	observability.ResultsCache().WithLabelValues("hit").Inc()
	span.SetAttributes(attribute.Bool("results.cache_hit", true))
	response.CacheHit = true
	return response, true
}

func (s *resultsService) writeCache(ctx context.Context, span trace.Span, response dto.RankingResponse) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, rankingCacheKey, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store results cache")
		span.RecordError(err)
	}
}
