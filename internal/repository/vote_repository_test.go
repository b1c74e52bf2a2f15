package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/photo-contest-api/internal/models"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestVoteTransactionCommitsAllWrites(t *testing.T) {
	db := setupContestTestDB(t)
	seedPhoto(t, db, "p1")
	repo := NewVoteRepository(db, fastPolicy(3))

	err := repo.WithTransaction(context.Background(), func(tx VoteTx) error {
		photo, err := tx.LockPhoto("p1")
		if err != nil {
			return err
		}
		require.Equal(t, 0, photo.TotalScore)

		existing, err := tx.FindVote("p1", "juror@dpu.edu.tr")
		if err != nil {
			return err
		}
		require.Nil(t, existing)

		if err := tx.ApplyDelta("p1", 4, 1); err != nil {
			return err
		}
		if err := tx.SaveVote(&models.Vote{PhotoID: "p1", JuryEmail: "juror@dpu.edu.tr", Score: 4, VotedAt: time.Now()}, true); err != nil {
			return err
		}
		return tx.AppendLog(&models.VoteLog{Action: models.VoteActionCreate, JuryEmail: "juror@dpu.edu.tr", PhotoID: "p1", Score: 4})
	})
	require.NoError(t, err)

	var photo models.Photo
	require.NoError(t, db.First(&photo, "id = ?", "p1").Error)
	require.Equal(t, 4, photo.TotalScore)
	require.Equal(t, 1, photo.VoteCount)

	vote, err := repo.GetVote(context.Background(), "p1", "juror@dpu.edu.tr")
	require.NoError(t, err)
	require.Equal(t, 4, vote.Score)

	var logs int64
	require.NoError(t, db.Model(&models.VoteLog{}).Count(&logs).Error)
	require.Equal(t, int64(1), logs)
}

func TestVoteTransactionRollsBackOnFailure(t *testing.T) {
	db := setupContestTestDB(t)
	seedPhoto(t, db, "p1")
	repo := NewVoteRepository(db, fastPolicy(3))

	boom := errors.New("boom")
	err := repo.WithTransaction(context.Background(), func(tx VoteTx) error {
		if err := tx.ApplyDelta("p1", 5, 1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var photo models.Photo
	require.NoError(t, db.First(&photo, "id = ?", "p1").Error)
	require.Equal(t, 0, photo.TotalScore)
	require.Equal(t, 0, photo.VoteCount)
}

func TestVoteTransactionRetriesConflicts(t *testing.T) {
	db := setupContestTestDB(t)
	seedPhoto(t, db, "p1")

	var retries []int
	policy := fastPolicy(3)
	policy.OnRetry = func(attempt int, _ error) { retries = append(retries, attempt) }
	repo := NewVoteRepository(db, policy)

	calls := 0
	err := repo.WithTransaction(context.Background(), func(tx VoteTx) error {
		calls++
		if err := tx.ApplyDelta("p1", 3, 1); err != nil {
			return err
		}
		if calls == 1 {
			return fmt.Errorf("insert vote: %w", gorm.ErrDuplicatedKey)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, []int{1}, retries)

	var photo models.Photo
	require.NoError(t, db.First(&photo, "id = ?", "p1").Error)
	require.Equal(t, 3, photo.TotalScore, "the first attempt must have rolled back")
	require.Equal(t, 1, photo.VoteCount)
}

func TestVoteTransactionGivesUpAfterMaxAttempts(t *testing.T) {
	db := setupContestTestDB(t)
	repo := NewVoteRepository(db, fastPolicy(3))

	calls := 0
	err := repo.WithTransaction(context.Background(), func(tx VoteTx) error {
		calls++
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	})
	require.ErrorIs(t, err, ErrTransactionConflict)
	require.Equal(t, 3, calls)
}

func TestVoteTransactionDoesNotRetryPermanentErrors(t *testing.T) {
	db := setupContestTestDB(t)
	repo := NewVoteRepository(db, fastPolicy(5))

	calls := 0
	err := repo.WithTransaction(context.Background(), func(tx VoteTx) error {
		calls++
		_, err := tx.LockPhoto("missing")
		return err
	})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.NotErrorIs(t, err, ErrTransactionConflict)
	require.Equal(t, 1, calls)
}

func TestVoteUniqueIndexRejectsSecondInsert(t *testing.T) {
	db := setupContestTestDB(t)
	seedPhoto(t, db, "p1")

	first := models.Vote{PhotoID: "p1", JuryEmail: "a@dpu.edu.tr", Score: 3, VotedAt: time.Now()}
	require.NoError(t, db.Create(&first).Error)

	second := models.Vote{PhotoID: "p1", JuryEmail: "a@dpu.edu.tr", Score: 5, VotedAt: time.Now()}
	err := db.Create(&second).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	require.True(t, IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	require.False(t, IsRetryable(nil))
	require.False(t, IsRetryable(errors.New("connection refused")))
	require.False(t, IsRetryable(&pgconn.PgError{Code: "23503"}))
	require.True(t, IsRetryable(&pgconn.PgError{Code: "40P01"}))
	require.True(t, IsRetryable(errors.New("database is locked (5) (SQLITE_BUSY)")))
}

func TestListByJury(t *testing.T) {
	db := setupContestTestDB(t)
	repo := NewVoteRepository(db, fastPolicy(1))

	now := time.Now()
	require.NoError(t, db.Create(&[]models.Vote{
		{PhotoID: "p2", JuryEmail: "a@dpu.edu.tr", Score: 2, VotedAt: now},
		{PhotoID: "p1", JuryEmail: "a@dpu.edu.tr", Score: 5, VotedAt: now},
		{PhotoID: "p1", JuryEmail: "b@dpu.edu.tr", Score: 1, VotedAt: now},
	}).Error)

	votes, err := repo.ListByJury(context.Background(), "a@dpu.edu.tr")
	require.NoError(t, err)
	require.Len(t, votes, 2)
	require.Equal(t, "p1", votes[0].PhotoID)

	all, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, 5, all[0].Score)
}
