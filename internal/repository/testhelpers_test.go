package repository

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/photo-contest-api/internal/database"
	"github.com/noah-isme/photo-contest-api/internal/models"
)

func setupContestTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.ConnectSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func seedPhoto(t *testing.T, db *gorm.DB, id string) models.Photo {
	t.Helper()
	photo := models.Photo{ID: id, URL: "https://cdn.example.com/" + id}
	require.NoError(t, db.Create(&photo).Error)
	return photo
}
