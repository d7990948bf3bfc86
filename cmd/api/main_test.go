package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"medication-adherence/internal/adapters/auth/jwtlocal"
	"medication-adherence/internal/config"
	"medication-adherence/internal/router"

	"github.com/rs/zerolog"
)

func TestRun_ReturnsSetupErrors(t *testing.T) {
	t.Run("storage", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Storage.Driver = "rest" // sin url ni api key

		err := run(cfg, zerolog.Nop())
		if err == nil || !strings.Contains(err.Error(), "storage rest") {
			t.Fatalf("expected storage error, got %v", err)
		}
	})

	t.Run("auth", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Auth.Mode = "jwt"

		err := run(cfg, zerolog.Nop())
		if !errors.Is(err, jwtlocal.ErrMissingSecret) {
			t.Fatalf("expected ErrMissingSecret, got %v", err)
		}
	})
}

func TestSetupAuth_DevModeHasNoVerifier(t *testing.T) {
	v, err := setupAuth(config.AuthConfig{Mode: "dev"})
	if err != nil || v != nil {
		t.Fatalf("dev mode should use debug headers, got %v, %v", v, err)
	}
}

func TestSetupStorage_MemoryByDefault(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	var opts router.Options
	db, err := setupStorage(ctx, config.StorageConfig{Driver: "memory"}, &opts)
	if err != nil || db != nil {
		t.Fatalf("memory driver must not open a DB, got %v, %v", db, err)
	}
	if opts.Store == nil || opts.Grants == nil {
		t.Fatalf("expected memory store and grants, got %#v", opts)
	}
}
