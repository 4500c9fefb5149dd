package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected port=8080, got %s", cfg.Port)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("expected cache_ttl=30s, got %s", cfg.CacheTTL)
	}
	if cfg.DiscountRate != 0 {
		t.Errorf("expected undiscounted default, got %g", cfg.DiscountRate)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricer.yaml")
	body := "port: \"9090\"\ndiscount_rate: 0.05\nsim_workers: 3\npricing_timeout: 5s\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7070")
	t.Setenv("MAX_PATH_STEPS", "1000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("env should override file: expected 7070, got %s", cfg.Port)
	}
	if cfg.DiscountRate != 0.05 {
		t.Errorf("expected discount_rate=0.05, got %g", cfg.DiscountRate)
	}
	if cfg.SimWorkers != 3 {
		t.Errorf("expected sim_workers=3, got %d", cfg.SimWorkers)
	}
	if cfg.PricingTimeout != 5*time.Second {
		t.Errorf("expected pricing_timeout=5s, got %s", cfg.PricingTimeout)
	}
	if cfg.MaxPathSteps != 1000 {
		t.Errorf("expected max_path_steps=1000, got %d", cfg.MaxPathSteps)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("CACHE_TTL", "0s")
	if _, err := Load(""); err == nil {
		t.Error("expected error for zero cache ttl")
	}
}
