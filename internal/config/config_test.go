package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development default, got %q", cfg.Env)
	}
	if cfg.UpdateInterval != 2*time.Second {
		t.Fatalf("expected 2s update interval, got %v", cfg.UpdateInterval)
	}
	if cfg.DeliveryRetryDelay != 1200*time.Millisecond {
		t.Fatalf("expected 1200ms retry delay, got %v", cfg.DeliveryRetryDelay)
	}
	if cfg.DeliveryMaxAttempts != 3 {
		t.Fatalf("expected 3 max attempts, got %d", cfg.DeliveryMaxAttempts)
	}
	if cfg.DedupTTL != time.Hour {
		t.Fatalf("expected 1h dedup ttl, got %v", cfg.DedupTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("STREAMING_ENABLED", "true")
	t.Setenv("STREAM_UPDATE_INTERVAL", "5s")
	t.Setenv("DELIVERY_MAX_ATTEMPTS", "7")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Fatalf("expected port override, got %q", cfg.Port)
	}
	if !cfg.StreamingEnabled {
		t.Fatal("expected streaming enabled")
	}
	if cfg.UpdateInterval != 5*time.Second {
		t.Fatalf("expected 5s update interval, got %v", cfg.UpdateInterval)
	}
	if cfg.DeliveryMaxAttempts != 7 {
		t.Fatalf("expected 7 max attempts, got %d", cfg.DeliveryMaxAttempts)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("STREAM_UPDATE_INTERVAL", "soon")
	t.Setenv("DELIVERY_MAX_ATTEMPTS", "many")

	cfg := Load()

	if cfg.UpdateInterval != 2*time.Second {
		t.Fatalf("expected fallback interval, got %v", cfg.UpdateInterval)
	}
	if cfg.DeliveryMaxAttempts != 3 {
		t.Fatalf("expected fallback attempts, got %d", cfg.DeliveryMaxAttempts)
	}
}

func TestProductionRequiresRedis(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("REDIS_URL", "")
	t.Setenv("ADMIN_SECRET", "s3cret")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for missing REDIS_URL in production")
		}
	}()
	Load()
}

func TestProductionRequiresAdminSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("ADMIN_SECRET", "")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for missing ADMIN_SECRET in production")
		}
	}()
	Load()
}
