package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/photo-contest-api/internal/database"
	"github.com/noah-isme/photo-contest-api/internal/mailer"
	"github.com/noah-isme/photo-contest-api/internal/models"
	"github.com/noah-isme/photo-contest-api/internal/ratelimit"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
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

// seedPhotos inserts photos one second apart so listing order is deterministic.
func seedPhotos(t *testing.T, db *gorm.DB, photos ...models.Photo) {
	t.Helper()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := range photos {
		if photos[i].URL == "" {
			photos[i].URL = "https://cdn.example.com/" + photos[i].ID
		}
		photos[i].CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, db.Create(&photos[i]).Error)
	}
}

type recordingMailer struct {
	mu       sync.Mutex
	sent     []mailer.Message
	failures map[int]error
	calls    int
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.failures[m.calls]; err != nil {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fixedLimiter struct {
	decision ratelimit.Decision
	err      error
	keys     []string
}

func (l *fixedLimiter) Allow(_ context.Context, key string) (ratelimit.Decision, error) {
	l.keys = append(l.keys, key)
	return l.decision, l.err
}

type testPhoto struct {
	name        string
	contentType string
	data        []byte
}

func jpegBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00})
	return data
}

func pngBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	return data
}

// fileHeaders round-trips the photos through a real multipart form so the
// headers behave like the ones fiber hands to the service.
func fileHeaders(t *testing.T, photos ...testPhoto) []*multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, photo := range photos {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photos"; filename=%q`, photo.name))
		header.Set("Content-Type", photo.contentType)
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(photo.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(64 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["photos"]
}

// unreadableHeaders carry size and type but fail if anything tries to open them.
func unreadableHeaders(count int, size int64) []*multipart.FileHeader {
	headers := make([]*multipart.FileHeader, 0, count)
	for i := 0; i < count; i++ {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Type", "image/jpeg")
		headers = append(headers, &multipart.FileHeader{
			Filename: fmt.Sprintf("photo-%d.jpg", i+1),
			Header:   header,
			Size:     size,
		})
	}
	return headers
}
