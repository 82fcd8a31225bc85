// Package preview applies a generated migration file to a live Umami
// Postgres database, replacing a manual psql invocation. After the
// import it registers the migrated website row so the data shows up in
// the Umami dashboard.
package preview

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/TobiasPankner/Matomo-to-Umami/internal/config"
)

// websiteBootstrapSQL creates a website row from the imported data so
// the Umami dashboard lists the migrated site. It derives the website
// ID and hostname from the imported events and attaches the site to
// the first Umami user.
const websiteBootstrapSQL = `INSERT INTO website (website_id, name, domain, share_id, reset_at, user_id, created_at, updated_at, deleted_at, created_by, team_id)
VALUES (
    (SELECT website_event.website_id FROM website_event LIMIT 1),
    (SELECT website_event.hostname FROM website_event WHERE website_event.hostname IS NOT NULL LIMIT 1),
    (SELECT website_event.hostname FROM website_event WHERE website_event.hostname IS NOT NULL LIMIT 1),
    NULL,
    NULL,
    (SELECT "user".user_id FROM "user" LIMIT 1),
    now(),
    now(),
    NULL,
    NULL,
    NULL
);`

// Run imports the SQL file into the database described by cfg.DSN. The
// file already wraps its statements in a transaction, so it is executed
// as a single script.
func Run(ctx context.Context, cfg config.Apply, log zerolog.Logger) error {
	info, err := os.Stat(cfg.File)
	if err != nil {
		return fmt.Errorf("stat migration file: %w", err)
	}
	log.Info().
		Str("file", cfg.File).
		Float64("size_mb", float64(info.Size())/(1024*1024)).
		Msg("applying migration file")

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	script, err := os.ReadFile(cfg.File)
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}

	if _, err := pool.Exec(ctx, string(script)); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	log.Info().Msg("migration applied")

	if cfg.SkipBootstrap {
		return nil
	}
	if _, err := pool.Exec(ctx, websiteBootstrapSQL); err != nil {
		// Not fatal: the website row may already exist from a
		// previous run or a manual registration.
		log.Warn().Err(err).Msg("website bootstrap statement failed")
		return nil
	}
	log.Info().Msg("website registered")
	return nil
}
