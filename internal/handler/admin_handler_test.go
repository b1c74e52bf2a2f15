package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/photo-contest-api/internal/config"
	"github.com/noah-isme/photo-contest-api/internal/dto"
	"github.com/noah-isme/photo-contest-api/internal/handler"
	"github.com/noah-isme/photo-contest-api/internal/middleware"
	"github.com/noah-isme/photo-contest-api/internal/router"
	"github.com/noah-isme/photo-contest-api/internal/service"
)

const testSecret = "test-secret"

type stubResultsService struct {
	ranking dto.RankingResponse
	report  dto.ReportResponse
	err     error
}

func (s *stubResultsService) Ranking(context.Context) (dto.RankingResponse, error) {
	return s.ranking, s.err
}

func (s *stubResultsService) Report(context.Context) (dto.ReportResponse, error) {
	return s.report, s.err
}

func (s *stubResultsService) Invalidate(context.Context) {}

type stubPhotoService struct {
	id       string
	filename string
	err      error
}

func (s *stubPhotoService) Register(_ context.Context, photoID string, file *multipart.FileHeader) (dto.PhotoResponse, error) {
	s.id = photoID
	s.filename = file.Filename
	if s.err != nil {
		return dto.PhotoResponse{}, s.err
	}
	return dto.PhotoResponse{ID: photoID, URL: "https://cdn.example.com/" + photoID, CreatedAt: time.Now().UTC()}, nil
}

func (s *stubPhotoService) Import(context.Context, []dto.PhotoImport) (int64, error) {
	return 0, nil
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func testConfig() config.Config {
	return config.Config{
		AppName:          "Photo Contest API",
		AppEnv:           "test",
		JWTSecret:        testSecret,
		AdminEmails:      []string{"chair@dpu.edu.tr"},
		RateLimitBackend: "memory",
		VoteRateLimit:    100,
		VoteRateWindow:   time.Minute,
	}
}

func newContestApp(results service.ResultsService, photos service.PhotoService, events service.VoteEventBus) *fiber.App {
	app := fiber.New()
	router.Register(app, testConfig(), router.Dependencies{
		JuryHandler:   handler.NewJuryHandler(&stubVoteService{}, zerolog.Nop()),
		AdminHandler:  handler.NewAdminHandler(results, photos, zerolog.Nop()),
		LiveHandler:   handler.NewLiveResultsHandler(events, zerolog.Nop()),
		JWTMiddleware: middleware.JWTProtected(testSecret),
		EventBus:      "local",
	})
	return app
}

func sampleRanking() dto.RankingResponse {
	return dto.RankingResponse{
		Entries: []dto.RankingEntry{
			{Rank: 1, PhotoID: "ENTRY_ID_002", URL: "https://cdn.example.com/2", Participant: "Mehmet Kaya", TotalScore: 30, VoteCount: 7, Average: "4.29"},
			{Rank: 2, PhotoID: "ENTRY_ID_001", URL: "https://cdn.example.com/1", Participant: service.UnknownParticipant, TotalScore: 0, VoteCount: 0, Average: "0.00"},
		},
		TotalVotes:  7,
		GeneratedAt: time.Now().UTC(),
	}
}

func TestAdminRankingContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "ranking.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	app := newContestApp(&stubResultsService{ranking: sampleRanking()}, &stubPhotoService{}, service.NewVoteEventBus(service.VoteEventBusConfig{}, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/results", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"email": "someone@dpu.edu.tr", "role": "admin"}))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	app := newContestApp(&stubResultsService{ranking: sampleRanking()}, &stubPhotoService{}, service.NewVoteEventBus(service.VoteEventBusConfig{}, zerolog.Nop()))

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{name: "anonymous", status: fiber.StatusUnauthorized},
		{name: "juror", token: signToken(t, jwt.MapClaims{"email": "juror@dpu.edu.tr"}), status: fiber.StatusForbidden},
		{name: "listed email", token: signToken(t, jwt.MapClaims{"email": "Chair@dpu.edu.tr"}), status: fiber.StatusOK},
		{name: "admin role", token: signToken(t, jwt.MapClaims{"sub": "ops@dpu.edu.tr", "role": "ADMIN"}), status: fiber.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/report", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestAdminResultsFailure(t *testing.T) {
	app := newContestApp(&stubResultsService{err: errors.New("db down")}, &stubPhotoService{}, service.NewVoteEventBus(service.VoteEventBusConfig{}, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/results", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"email": "chair@dpu.edu.tr"}))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	payload := decodeResponse(t, resp)
	require.NotContains(t, payload.Message, "db down")
}

func photoUpload(t *testing.T, id string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("id", id))
	part, err := writer.CreateFormFile("file", "entry.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/photos", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"email": "chair@dpu.edu.tr"}))
	return req
}

func TestAdminRegisterPhoto(t *testing.T) {
	photos := &stubPhotoService{}
	app := newContestApp(&stubResultsService{}, photos, service.NewVoteEventBus(service.VoteEventBusConfig{}, zerolog.Nop()))

	resp, err := app.Test(photoUpload(t, "ENTRY_ID_009"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "ENTRY_ID_009", photos.id)
	require.Equal(t, "entry.jpg", photos.filename)

	photos.err = service.ErrStorageUnavailable
	resp, err = app.Test(photoUpload(t, "ENTRY_ID_009"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	photos.err = &service.ValidationError{Field: "file", Rule: "content", Message: "file content is not an image", Err: service.ErrInvalidAttachment}
	resp, err = app.Test(photoUpload(t, "ENTRY_ID_009"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func startFiberServer(t *testing.T, app *fiber.App) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	t.Cleanup(func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	})

	return "http://" + listener.Addr().String()
}

func TestLiveResultsWebsocket(t *testing.T) {
	events := service.NewVoteEventBus(service.VoteEventBusConfig{}, zerolog.Nop())
	app := newContestApp(&stubResultsService{}, &stubPhotoService{}, events)
	baseURL := startFiberServer(t, app)

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/admin/results/live"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	_, resp, err := dialer.Dial(wsURL+"?access_token="+signToken(t, jwt.MapClaims{"email": "juror@dpu.edu.tr"}), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	conn, resp, err := dialer.Dial(wsURL+"?access_token="+signToken(t, jwt.MapClaims{"email": "chair@dpu.edu.tr"}), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer conn.Close()

	event := service.VoteEvent{PhotoID: "ENTRY_ID_001", Action: "VOTE", TotalScore: 4, VoteCount: 1, Average: "4.00"}

	// The subscription is registered just after the upgrade, so keep publishing
	// until the first event arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				events.Publish(context.Background(), event)
			}
		}
	}()

	var got service.VoteEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))

	require.Equal(t, event.PhotoID, got.PhotoID)
	require.Equal(t, event.Average, got.Average)
}

func TestLiveResultsRequiresUpgrade(t *testing.T) {
	app := newContestApp(&stubResultsService{}, &stubPhotoService{}, service.NewVoteEventBus(service.VoteEventBusConfig{}, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/results/live", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"email": "chair@dpu.edu.tr"}))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
