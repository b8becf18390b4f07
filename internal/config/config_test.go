package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8000" {
		t.Fatalf("expected port 8000, got %q", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "local" || cfg.Storage.Bucket != "parking-images" || cfg.Storage.Prefix != "parking" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Parking.SessionFetchMin != 500 || cfg.Parking.SessionFetchFactor != 3 || cfg.Parking.StatusFetchLimit != 1000 {
		t.Fatalf("unexpected parking defaults: %+v", cfg.Parking)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Fatalf("unexpected cors origins: %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected shutdown timeout: %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_CORS_ORIGINS", "http://localhost:3000, https://dash.example.com")
	t.Setenv("STORAGE_DRIVER", "S3")
	t.Setenv("STORAGE_PUBLIC_BASE_URL", "https://cdn.example.com/public/")
	t.Setenv("PARKING_STATUS_FETCH_LIMIT", "250")
	t.Setenv("SQS_QUEUE_URL", "https://sqs.ap-southeast-1.amazonaws.com/123/events")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://dash.example.com" {
		t.Fatalf("unexpected cors origins: %v", cfg.Server.CORSOrigins)
	}
	if cfg.Storage.Driver != "s3" {
		t.Fatalf("expected s3 driver, got %q", cfg.Storage.Driver)
	}
	if cfg.Storage.PublicBaseURL != "https://cdn.example.com/public" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.Storage.PublicBaseURL)
	}
	if cfg.Parking.StatusFetchLimit != 250 {
		t.Fatalf("expected status fetch limit 250, got %d", cfg.Parking.StatusFetchLimit)
	}
	if cfg.SQS.QueueURL == "" {
		t.Fatalf("expected queue url to be set")
	}
}

func TestLoadRejectsUnknownStorageDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "ftp")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown storage driver")
	}
}
