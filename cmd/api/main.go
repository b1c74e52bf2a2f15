package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/photo-contest-api/internal/config"
	"github.com/noah-isme/photo-contest-api/internal/database"
	"github.com/noah-isme/photo-contest-api/internal/handler"
	"github.com/noah-isme/photo-contest-api/internal/mailer"
	"github.com/noah-isme/photo-contest-api/internal/middleware"
	"github.com/noah-isme/photo-contest-api/internal/observability"
	"github.com/noah-isme/photo-contest-api/internal/ratelimit"
	"github.com/noah-isme/photo-contest-api/internal/repository"
	"github.com/noah-isme/photo-contest-api/internal/router"
	"github.com/noah-isme/photo-contest-api/internal/service"
	"github.com/noah-isme/photo-contest-api/internal/utils"
	cloud "github.com/noah-isme/photo-contest-api/pkg/cloudinary"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}
	logger = logger.With().Str("service", cfg.AppName).Str("env", cfg.AppEnv).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	limiter := buildSubmissionLimiter(cfg, redisClient, logger)
	mail := buildMailer(cfg, logger)

	var storage service.PhotoStorage
	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("cloudinary disabled, photo registration will fail")
	} else {
		storage = uploader
	}

	participants, err := service.LoadParticipantDirectory(cfg.ParticipantsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load participant directory")
	}
	logger.Info().Int("participants", participants.Len()).Str("file", cfg.ParticipantsFile).Msg("participant directory loaded")

	validate := utils.NewValidator()
	observability.RegisterMetrics()

	policy := repository.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.VoteRetryAttempts
	policy.OnRetry = func(attempt int, err error) {
		observability.VoteRetries().Inc()
		logger.Debug().Err(err).Int("attempt", attempt).Msg("retrying vote transaction")
	}

	photoRepo := repository.NewPhotoRepository(db)
	voteRepo := repository.NewVoteRepository(db, policy)

	busConfig, busName := eventBusConfig(cfg, redisClient, natsConn)
	events := service.NewVoteEventBus(busConfig, logger)

	voteService := service.NewVoteService(photoRepo, voteRepo, events, validate, cfg.VoteTimeout, logger)
	resultsService := service.NewResultsService(photoRepo, voteRepo, participants, redisClient, cfg.ResultsCacheTTL, logger)
	photoService := service.NewPhotoService(photoRepo, storage, validate, cfg.Submission.MaxFileBytes, logger)
	submissionService := service.NewSubmissionService(limiter, mail, validate, service.SubmissionPolicy{
		StudentDomain:     cfg.Submission.StudentDomain,
		StaffDomain:       cfg.Submission.StaffDomain,
		AllowedImageTypes: cfg.Submission.AllowedImageTypes,
		MinFileBytes:      cfg.Submission.MinFileBytes,
		MaxFileBytes:      cfg.Submission.MaxFileBytes,
		MinAttachments:    cfg.Submission.MinAttachments,
		MaxAttachments:    cfg.Submission.MaxAttachments,
		MaxTotalBytes:     cfg.Submission.MaxTotalBytes,
		AdminEmail:        cfg.Mail.AdminEmail,
	}, logger)

	events.OnEvent(func(ctx context.Context, _ service.VoteEvent) {
		resultsService.Invalidate(ctx)
	})

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	events.Start(runCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ProxyHeader:  cfg.ProxyHeader,
		BodyLimit:    cfg.RequestBodyLimit(),
		ErrorHandler: middleware.ErrorHandler(logger),
	})

	middleware.Register(app, middleware.Config{
		Logger:    &logger,
		AccessLog: cfg.AppEnv == "development",
	})
	app.Get("/metrics", observability.MetricsHandler())

	router.Register(app, cfg, router.Dependencies{
		ApplicationHandler: handler.NewApplicationHandler(submissionService, logger),
		JuryHandler:        handler.NewJuryHandler(voteService, logger),
		AdminHandler:       handler.NewAdminHandler(resultsService, photoService, logger),
		LiveHandler:        handler.NewLiveResultsHandler(events, logger),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		EventBus:           busName,
		HealthChecks:       healthChecks(db, redisClient, natsConn),
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, cancelRun, logger)
}

func buildSubmissionLimiter(cfg config.Config, client *redis.Client, logger zerolog.Logger) ratelimit.Limiter {
	if strings.EqualFold(cfg.RateLimitBackend, "redis") {
		if client == nil {
			logger.Fatal().Msg("CONTEST_RATE_LIMIT_BACKEND=redis requires CONTEST_REDIS_URL")
		}
		return ratelimit.NewRedisFixedWindow(client, "contest:ratelimit", cfg.RateLimitWindow, cfg.RateLimitMax)
	}
	return ratelimit.NewFixedWindow(cfg.RateLimitWindow, cfg.RateLimitMax)
}

func buildMailer(cfg config.Config, logger zerolog.Logger) mailer.Mailer {
	if !strings.EqualFold(cfg.Mail.Driver, "smtp") {
		logger.Warn().Msg("mail driver is log, applications will not be delivered")
		return mailer.NewLogMailer(logger)
	}

	smtp, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		UseSSL:   cfg.Mail.UseSSL,
		Timeout:  cfg.Mail.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure smtp mailer")
	}
	return smtp
}

func healthChecks(db *gorm.DB, client *redis.Client, conn *nats.Conn) map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	if conn != nil {
		checks["nats"] = func(context.Context) error {
			if !conn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return checks
}

// eventBusConfig picks a single cross-instance transport, NATS first.
func eventBusConfig(cfg config.Config, client *redis.Client, conn *nats.Conn) (service.VoteEventBusConfig, string) {
	switch {
	case conn != nil:
		return service.VoteEventBusConfig{NATS: conn, NATSSubject: cfg.NATSSubject}, "nats"
	case client != nil:
		return service.VoteEventBusConfig{Redis: client, RedisChannel: cfg.RedisEvents}, "redis"
	default:
		return service.VoteEventBusConfig{}, "local"
	}
}

func waitForShutdown(app *fiber.App, stopBackground context.CancelFunc, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
