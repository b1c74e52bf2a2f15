package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/photo-contest-api/internal/models"
)

// ErrTransactionConflict is returned once every retry of a vote transaction
// lost to a concurrent writer.
var ErrTransactionConflict = errors.New("vote transaction conflict")

// Postgres SQLSTATE codes that mean "run the transaction again".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// VoteTx is the set of writes available inside a vote transaction.
type VoteTx interface {
	LockPhoto(photoID string) (models.Photo, error)
	FindVote(photoID, juryEmail string) (*models.Vote, error)
	ApplyDelta(photoID string, scoreDelta, countDelta int) error
	SaveVote(vote *models.Vote, isNew bool) error
	AppendLog(entry *models.VoteLog) error
}

// VoteRepository owns the votes and logs collections.
type VoteRepository interface {
	WithTransaction(ctx context.Context, fn func(tx VoteTx) error) error
	GetVote(ctx context.Context, photoID, juryEmail string) (models.Vote, error)
	ListAll(ctx context.Context) ([]models.Vote, error)
	ListByJury(ctx context.Context, juryEmail string) ([]models.Vote, error)
}

// RetryPolicy bounds how often a conflicting transaction is replayed.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	OnRetry         func(attempt int, err error)
}

// DefaultRetryPolicy is used when the caller passes a zero policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     250 * time.Millisecond,
	}
}

type voteRepository struct {
	db     *gorm.DB
	policy RetryPolicy
}

// NewVoteRepository constructs the vote repository.
func NewVoteRepository(db *gorm.DB, policy RetryPolicy) VoteRepository {
	defaults := DefaultRetryPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaults.MaxAttempts
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = defaults.InitialInterval
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = defaults.MaxInterval
	}

	return &voteRepository{db: db, policy: policy}
}

func (r *voteRepository) WithTransaction(ctx context.Context, fn func(tx VoteTx) error) error {
	attempts := 0
	operation := func() error {
		attempts++
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&voteTx{db: tx})
		})
		if err == nil {
			return nil
		}
		if IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.policy.InitialInterval
	policy.MaxInterval = r.policy.MaxInterval
	policy.MaxElapsedTime = 0

	var strategy backoff.BackOff = backoff.WithMaxRetries(policy, uint64(r.policy.MaxAttempts-1))
	strategy = backoff.WithContext(strategy, ctx)

	notify := func(err error, _ time.Duration) {
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempts, err)
		}
	}

	err := backoff.RetryNotify(operation, strategy, notify)
	if err != nil && IsRetryable(err) {
		return fmt.Errorf("%w after %d attempts: %v", ErrTransactionConflict, attempts, err)
	}
	return err
}

func (r *voteRepository) GetVote(ctx context.Context, photoID, juryEmail string) (models.Vote, error) {
	var vote models.Vote
	err := r.db.WithContext(ctx).
		Where("photo_id = ? AND jury_email = ?", photoID, juryEmail).
		First(&vote).Error
	return vote, err
}

func (r *voteRepository) ListAll(ctx context.Context) ([]models.Vote, error) {
	var votes []models.Vote
	err := r.db.WithContext(ctx).Order("photo_id ASC").Order("score DESC").Order("id ASC").Find(&votes).Error
	return votes, err
}

func (r *voteRepository) ListByJury(ctx context.Context, juryEmail string) ([]models.Vote, error) {
	var votes []models.Vote
	err := r.db.WithContext(ctx).Where("jury_email = ?", juryEmail).Order("photo_id ASC").Find(&votes).Error
	return votes, err
}

// IsRetryable reports whether err came from losing a race with another
// transaction rather than from bad input or an unreachable store.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}

	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") || strings.Contains(message, "database table is locked")
}

type voteTx struct {
	db *gorm.DB
}

func (t *voteTx) LockPhoto(photoID string) (models.Photo, error) {
	var photo models.Photo
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", photoID).
		First(&photo).Error
	return photo, err
}

func (t *voteTx) FindVote(photoID, juryEmail string) (*models.Vote, error) {
	var vote models.Vote
	err := t.db.Where("photo_id = ? AND jury_email = ?", photoID, juryEmail).First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func (t *voteTx) ApplyDelta(photoID string, scoreDelta, countDelta int) error {
	result := t.db.Model(&models.Photo{}).
		Where("id = ?", photoID).
		Updates(map[string]interface{}{
			"total_score": gorm.Expr("total_score + ?", scoreDelta),
			"vote_count":  gorm.Expr("vote_count + ?", countDelta),
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (t *voteTx) SaveVote(vote *models.Vote, isNew bool) error {
	if isNew {
		return t.db.Create(vote).Error
	}

	result := t.db.Model(&models.Vote{}).
		Where("photo_id = ? AND jury_email = ?", vote.PhotoID, vote.JuryEmail).
		Updates(map[string]interface{}{
			"score":    vote.Score,
			"comment":  vote.Comment,
			"voted_at": vote.VotedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (t *voteTx) AppendLog(entry *models.VoteLog) error {
	return t.db.Create(entry).Error
}
