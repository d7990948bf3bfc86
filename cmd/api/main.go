// @title Medication Adherence API
// @version 1.0
// @description Registro de medicaciones, tomas y adherencia para pacientes y cuidadores.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medication-adherence/internal/adapters/auth/hosted"
	"medication-adherence/internal/adapters/auth/jwtlocal"
	"medication-adherence/internal/adapters/photos/s3"
	mem "medication-adherence/internal/adapters/storage/memory"
	pg "medication-adherence/internal/adapters/storage/postgres"
	"medication-adherence/internal/adapters/storage/rest"
	"medication-adherence/internal/config"
	"medication-adherence/internal/domain/caregivers"
	"medication-adherence/internal/platform/logger"
	"medication-adherence/internal/ports/auth"
	"medication-adherence/internal/router"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// aún no hay logger configurado
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("config")
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.Log.App,
	})

	// único punto de salida: run ya cerró DB y señales al volver
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := router.Options{
		Logger:         &log,
		RateRPS:        cfg.Rate.RPS,
		RateBurst:      cfg.Rate.Burst,
		MetricsEnabled: cfg.MetricsEnabled,
		SwaggerEnabled: cfg.SwaggerEnabled,
		Ctx:            ctx,
	}

	db, err := setupStorage(ctx, cfg.Storage, &opts)
	if err != nil {
		return fmt.Errorf("storage %s: %w", cfg.Storage.Driver, err)
	}
	if db != nil {
		defer db.Close()
	}

	opts.AuthVerifier, err = setupAuth(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth %s: %w", cfg.Auth.Mode, err)
	}

	if cfg.Photos.Enabled() {
		p, err := s3.New(ctx, s3.Config{
			Bucket:        cfg.Photos.Bucket,
			Region:        cfg.Photos.Region,
			Endpoint:      cfg.Photos.Endpoint,
			AccessKey:     cfg.Photos.AccessKey,
			SecretKey:     cfg.Photos.SecretKey,
			PublicBaseURL: cfg.Photos.PublicBaseURL,
			Expiry:        cfg.Photos.URLExpiry,
		})
		if err != nil {
			return fmt.Errorf("photos: %w", err)
		}
		opts.Photos = p
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.NewRouter(opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("storage", cfg.Storage.Driver).
			Str("auth", cfg.Auth.Mode).
			Bool("photos", cfg.Photos.Enabled()).
			Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// setupStorage completa Store/Grants de opts. Devuelve la DB si abrió una.
func setupStorage(ctx context.Context, sc config.StorageConfig, opts *router.Options) (*sql.DB, error) {
	var db *sql.DB
	if sc.DSN != "" && (sc.Driver == "postgres" || sc.Driver == "rest") {
		var err error
		db, err = pg.Open(sc.DSN)
		if err != nil {
			return nil, err
		}
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := pg.Migrate(migrateCtx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	switch sc.Driver {
	case "postgres":
		opts.DB = db
	case "rest":
		store, err := rest.NewMedicationsStore(rest.Config{
			BaseURL:    sc.URL,
			APIKey:     sc.APIKey,
			ServiceKey: sc.ServiceKey,
			Timeout:    sc.Timeout,
			MaxRetries: sc.MaxRetries,
		})
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return nil, err
		}
		opts.Store = store
		opts.Grants = grantsRepo(db)
	default:
		opts.Store = mem.NewMedicationsStore()
		opts.Grants = mem.NewCaregiversRepo()
	}
	return db, nil
}

// Con el store REST los grants viven en Postgres si hay DSN; si no, en memoria.
func grantsRepo(db *sql.DB) caregivers.Repository {
	if db != nil {
		return pg.NewCaregiversRepo(db)
	}
	return mem.NewCaregiversRepo()
}

func setupAuth(ac config.AuthConfig) (auth.AuthVerifier, error) {
	switch ac.Mode {
	case "jwt":
		return jwtlocal.NewVerifier(ac.JWTSecret, ac.JWTAudience)
	case "remote":
		c, err := hosted.NewClient(hosted.Config{BaseURL: ac.IdentityURL, APIKey: ac.APIKey})
		if err != nil {
			return nil, err
		}
		return hosted.NewVerifier(c), nil
	default:
		// dev: X-Debug-User-ID
		return nil, nil
	}
}
