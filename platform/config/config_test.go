package config

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	schedule, err := parseSchedule(" austin=@every 6h ; dallas=0 */4 * * *;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schedule) != 2 {
		t.Fatalf("expected 2 entries, got %v", schedule)
	}
	if schedule["austin"] != "@every 6h" || schedule["dallas"] != "0 */4 * * *" {
		t.Fatalf("unexpected schedule %v", schedule)
	}

	for _, bad := range []string{"austin", "=@every 1h", "dallas="} {
		if _, err := parseSchedule(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("INGEST_SCHEDULE", "")
	t.Setenv("SOURCE_HOUSTON_URL", "")
	t.Setenv("MINIO_ENDPOINT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GetIngestRunTimeout() != 10*time.Minute {
		t.Fatalf("expected 10m run timeout, got %s", cfg.GetIngestRunTimeout())
	}
	if _, ok := cfg.GetSourceSettings("austin"); !ok {
		t.Fatalf("expected austin to be configured by default")
	}
	if _, ok := cfg.GetSourceSettings("houston"); ok {
		t.Fatalf("expected houston to need an explicit URL")
	}
	if cfg.IsArchiveEnabled() {
		t.Fatalf("expected archive to be disabled without an endpoint")
	}
}

func TestLoadRejectsScheduleForUnconfiguredSource(t *testing.T) {
	t.Setenv("SOURCE_HOUSTON_URL", "")
	t.Setenv("INGEST_SCHEDULE", "houston=@every 1h")

	if _, err := Load(); err == nil {
		t.Fatalf("expected schedule for unconfigured source to fail")
	}
}

func TestLoadRequiresSecretForOpenCORSInProduction(t *testing.T) {
	t.Setenv("INGEST_SCHEDULE", "")
	t.Setenv("APP_ENV", "production")
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("INGEST_API_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected production wildcard CORS without secret to fail")
	}
}

func TestRequireDatabase(t *testing.T) {
	if err := (&Config{}).RequireDatabase(); err == nil {
		t.Fatalf("expected missing DATABASE_URL to fail")
	}
	if err := (&Config{DatabaseURL: "postgres://localhost/permits"}).RequireDatabase(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
