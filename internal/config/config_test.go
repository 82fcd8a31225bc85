package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func requiredFlags() []string {
	return []string{
		"-matomo-url", "https://tracking.example.com",
		"-site-id", "1",
		"-token", "secret",
		"-website-id", "4b426fbb-b468-4d40-8a2c-34406d64e56e",
	}
}

func TestParseMigrate(t *testing.T) {
	args := append(requiredFlags(),
		"-start-date", "2023-01-01",
		"-end-date", "2023-06-30",
		"-batch-size", "500",
		"-window-days", "7",
		"-output", "out.sql",
	)

	cfg, err := ParseMigrate(args)
	require.NoError(t, err)

	require.Equal(t, "https://tracking.example.com", cfg.MatomoURL)
	require.Equal(t, "1", cfg.SiteID)
	require.Equal(t, "secret", cfg.Token)
	require.Equal(t, "4b426fbb-b468-4d40-8a2c-34406d64e56e", cfg.WebsiteID)
	require.Equal(t, "out.sql", cfg.Output)
	require.Equal(t, 500, cfg.BatchSize)
	require.Equal(t, 7, cfg.WindowDays)
	require.Equal(t, "2023-01-01", cfg.StartDate.Format("2006-01-02"))
	require.Equal(t, "2023-06-30", cfg.EndDate.Format("2006-01-02"))
}

func TestParseMigrateDefaults(t *testing.T) {
	cfg, err := ParseMigrate(requiredFlags())
	require.NoError(t, err)

	require.Equal(t, DefaultOutput, cfg.Output)
	require.Equal(t, DefaultBatchSize, cfg.BatchSize)
	require.Equal(t, DefaultWindowDays, cfg.WindowDays)
	require.Equal(t, DefaultPageSize, cfg.PageSize)

	// End date defaults to now, start date to two years earlier.
	require.WithinDuration(t, time.Now().UTC(), cfg.EndDate, time.Minute)
	require.Equal(t, cfg.EndDate.AddDate(-DefaultLookback, 0, 0), cfg.StartDate)
}

func TestParseMigrateTrimsTrailingSlash(t *testing.T) {
	args := requiredFlags()
	args[1] = "https://tracking.example.com/"

	cfg, err := ParseMigrate(args)
	require.NoError(t, err)
	require.Equal(t, "https://tracking.example.com", cfg.MatomoURL)
}

func TestParseMigrateEnvFallback(t *testing.T) {
	t.Setenv("MATOMO_URL", "https://env.example.com")
	t.Setenv("MATOMO_SITE_ID", "9")
	t.Setenv("MATOMO_TOKEN", "env-token")
	t.Setenv("UMAMI_WEBSITE_ID", "4b426fbb-b468-4d40-8a2c-34406d64e56e")
	t.Setenv("BATCH_SIZE", "250")

	cfg, err := ParseMigrate(nil)
	require.NoError(t, err)
	require.Equal(t, "https://env.example.com", cfg.MatomoURL)
	require.Equal(t, "9", cfg.SiteID)
	require.Equal(t, "env-token", cfg.Token)
	require.Equal(t, 250, cfg.BatchSize)
}

func TestParseMigrateFlagOverridesEnv(t *testing.T) {
	t.Setenv("MATOMO_TOKEN", "env-token")

	args := requiredFlags()
	cfg, err := ParseMigrate(args)
	require.NoError(t, err)
	require.Equal(t, "secret", cfg.Token)
}

func TestParseMigrateErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{
			name:    "missing everything",
			args:    nil,
			wantMsg: "missing required flags",
		},
		{
			name:    "missing token",
			args:    []string{"-matomo-url", "https://x", "-site-id", "1", "-website-id", "4b426fbb-b468-4d40-8a2c-34406d64e56e"},
			wantMsg: "-token",
		},
		{
			name:    "website id not a uuid",
			args:    append(requiredFlags()[:6], "-website-id", "not-a-uuid"),
			wantMsg: "website-id must be a valid UUID",
		},
		{
			name:    "bad start date",
			args:    append(requiredFlags(), "-start-date", "01/02/2023"),
			wantMsg: "expected YYYY-MM-DD",
		},
		{
			name:    "zero batch size",
			args:    append(requiredFlags(), "-batch-size", "0"),
			wantMsg: "batch-size must be at least 1",
		},
		{
			name:    "zero window days",
			args:    append(requiredFlags(), "-window-days", "0"),
			wantMsg: "window-days must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMigrate(tt.args)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseApply(t *testing.T) {
	cfg, err := ParseApply([]string{"-file", "m.sql", "-dsn", "postgres://u:p@db/umami", "-skip-bootstrap"})
	require.NoError(t, err)
	require.Equal(t, "m.sql", cfg.File)
	require.Equal(t, "postgres://u:p@db/umami", cfg.DSN)
	require.True(t, cfg.SkipBootstrap)
}

func TestParseApplyDefaults(t *testing.T) {
	cfg, err := ParseApply(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultOutput, cfg.File)
	require.NotEmpty(t, cfg.DSN)
	require.False(t, cfg.SkipBootstrap)
}
