// Command matomo2umami exports visit data from a Matomo installation
// into a batched SQL file for Umami's Postgres schema, and can apply
// the result to a live Umami database.
//
// Usage:
//
//	matomo2umami migrate -matomo-url URL -site-id ID -token TOKEN -website-id UUID [flags]
//	matomo2umami apply -dsn DSN [flags]
//
// Required values may also come from environment variables or a .env
// file: MATOMO_URL, MATOMO_SITE_ID, MATOMO_TOKEN, UMAMI_WEBSITE_ID.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/TobiasPankner/Matomo-to-Umami/internal/config"
	"github.com/TobiasPankner/Matomo-to-Umami/internal/matomo"
	"github.com/TobiasPankner/Matomo-to-Umami/internal/migrate"
	"github.com/TobiasPankner/Matomo-to-Umami/internal/preview"
	"github.com/TobiasPankner/Matomo-to-Umami/internal/umami"
)

func main() {
	// Missing .env is fine: flags and real environment still apply.
	_ = godotenv.Load()

	cmd := "migrate"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd = args[0]
		args = args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "migrate":
		err = runMigrate(ctx, args)
	case "apply":
		err = runApply(ctx, args)
	default:
		err = fmt.Errorf("unknown command %q (expected migrate or apply)", cmd)
	}
	if err != nil {
		log := newLogger(false)
		log.Error().Err(err).Msg("failed")
		os.Exit(1)
	}
}

func runMigrate(ctx context.Context, args []string) error {
	cfg, err := config.ParseMigrate(args)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Verbose)

	dateRange, err := migrate.NewRange(cfg.StartDate, cfg.EndDate)
	if err != nil {
		return err
	}

	retry := migrate.Retryer{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    migrate.DefaultRetryMaxDelay,
	}
	client := matomo.NewClient(matomo.Config{
		BaseURL:           cfg.MatomoURL,
		SiteID:            cfg.SiteID,
		Token:             cfg.Token,
		PageSize:          cfg.PageSize,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Retry:             retry,
		Log:               log,
	})

	emitter, err := umami.NewEmitter(cfg.Output, cfg.BatchSize, log)
	if err != nil {
		return err
	}

	pipe := &migrate.Pipeline[matomo.Visit, umami.Session, umami.Event]{
		Source:     client,
		Transform:  umami.NewTransformer(cfg.WebsiteID),
		Sink:       emitter,
		Range:      dateRange,
		WindowDays: cfg.WindowDays,
		Info: migrate.RunInfo{
			GeneratedAt: time.Now().UTC(),
			WebsiteID:   cfg.WebsiteID,
			Range:       dateRange,
			SourceURL:   cfg.MatomoURL,
			SiteID:      cfg.SiteID,
		},
		Log: log,
	}

	stats, err := pipe.Run(ctx)
	if err != nil {
		var runErr *migrate.RunError
		if errors.As(err, &runErr) && !runErr.Window.IsZero() {
			log.Error().
				Str("phase", string(runErr.Phase)).
				Stringer("window", runErr.Window).
				Msg("migration aborted")
		}
		return err
	}

	log.Info().
		Object("stats", stats).
		Str("output", emitter.Path()).
		Msg("migration complete")
	return nil
}

func runApply(ctx context.Context, args []string) error {
	cfg, err := config.ParseApply(args)
	if err != nil {
		return err
	}
	return preview.Run(ctx, cfg, newLogger(cfg.Verbose))
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}
