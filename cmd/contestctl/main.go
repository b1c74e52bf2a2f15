package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/noah-isme/photo-contest-api/internal/config"
	"github.com/noah-isme/photo-contest-api/internal/database"
	"github.com/noah-isme/photo-contest-api/internal/dto"
	"github.com/noah-isme/photo-contest-api/internal/organizer"
	"github.com/noah-isme/photo-contest-api/internal/repository"
	"github.com/noah-isme/photo-contest-api/internal/service"
	"github.com/noah-isme/photo-contest-api/internal/utils"
)

type globalFlags struct {
	sqlitePath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:          "contestctl",
		Short:        "Operator tooling for the photo contest",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.sqlitePath, "sqlite", "", "use a local SQLite file instead of CONTEST_DATABASE_URL")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level")

	root.AddCommand(
		newMigrateCommand(flags),
		newOrganizeCommand(flags),
		newSeedPhotosCommand(flags),
		newExportCommand(flags),
	)
	return root
}

func newLogger(flags *globalFlags) zerolog.Logger {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(flags.logLevel); err == nil {
		logger = logger.Level(level)
	}
	return logger
}

func openDatabase(flags *globalFlags, cfg config.Config) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	if flags.sqlitePath != "" {
		db, err = database.ConnectSQLite(flags.sqlitePath)
	} else {
		db, err = database.ConnectPostgres(cfg.DatabaseURL)
	}
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newMigrateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the contest schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(flags)
			cfg, err := config.LoadTooling()
			if err != nil {
				return err
			}
			if _, err := openDatabase(flags, cfg); err != nil {
				return err
			}
			logger.Info().Msg("schema is up to date")
			return nil
		},
	}
}

func newOrganizeCommand(flags *globalFlags) *cobra.Command {
	var opts organizer.Options

	cmd := &cobra.Command{
		Use:   "organize",
		Short: "Copy participant folders into an anonymised jury pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(flags)
			result, err := organizer.Organize(opts, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d photos written, directory at %s\n", len(result.Entries), result.DirectoryPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Source, "src", "", "folder holding one sub-folder per participant")
	cmd.Flags().StringVar(&opts.Destination, "dst", "", "jury pool folder, emptied before copying")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "ENTRY_ID_", "file name prefix for anonymised photos")
	_ = cmd.MarkFlagRequired("src")
	_ = cmd.MarkFlagRequired("dst")
	return cmd
}

func newSeedPhotosCommand(flags *globalFlags) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed-photos",
		Short: "Register already hosted photos from a JSON list of {id, url}",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(flags)
			cfg, err := config.LoadTooling()
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read photo list: %w", err)
			}
			var items []dto.PhotoImport
			if err := json.Unmarshal(raw, &items); err != nil {
				return fmt.Errorf("decode photo list %s: %w", file, err)
			}

			db, err := openDatabase(flags, cfg)
			if err != nil {
				return err
			}
			photos := service.NewPhotoService(repository.NewPhotoRepository(db), nil, utils.NewValidator(), cfg.Submission.MaxFileBytes, logger)

			affected, err := photos.Import(cmd.Context(), items)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d photos registered\n", affected)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file with the photo list")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newExportCommand(flags *globalFlags) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the results workbook with participant names resolved",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(flags)
			cfg, err := config.LoadTooling()
			if err != nil {
				return err
			}

			participants, err := service.LoadParticipantDirectory(cfg.ParticipantsFile)
			if err != nil {
				return err
			}
			db, err := openDatabase(flags, cfg)
			if err != nil {
				return err
			}

			results := service.NewResultsService(
				repository.NewPhotoRepository(db),
				repository.NewVoteRepository(db, repository.DefaultRetryPolicy()),
				participants, nil, 0, logger,
			)
			report, err := results.Report(cmd.Context())
			if err != nil {
				return err
			}

			if dir := filepath.Dir(outPath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := writeFile(outPath, report, service.WriteResultsWorkbook); err != nil {
				return err
			}

			logger.Info().Int("photos", len(report.Photos)).Int("votes", report.TotalVotes).Str("file", outPath).Msg("results exported")
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "results.xlsx", "output workbook")
	return cmd
}

func writeFile(path string, report dto.ReportResponse, write func(io.Writer, dto.ReportResponse) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, report); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
