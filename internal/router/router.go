package router

import (
	"context"
	"database/sql"
	"net/http"

	_ "medication-adherence/docs"
	"medication-adherence/internal/adapters/realtime"
	mem "medication-adherence/internal/adapters/storage/memory"
	pg "medication-adherence/internal/adapters/storage/postgres"
	"medication-adherence/internal/domain/caregivers"
	"medication-adherence/internal/domain/doses"
	"medication-adherence/internal/domain/medications"
	"medication-adherence/internal/middleware"
	"medication-adherence/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Storage: Store/Grants explícitos ganan; si no, DB => Postgres; si no, in-memory.
	Store  medications.Store
	Grants caregivers.Repository
	DB     *sql.DB

	Photos doses.PhotoPresigner // nil => 501 en /doses/photo-uploads
	Logger *zerolog.Logger      // nil => sin logs

	// RateRPS <= 0 deshabilita el rate limit.
	RateRPS   float64
	RateBurst int

	MetricsEnabled bool
	SwaggerEnabled bool

	// Ctx: al cancelarse se cierran los websockets abiertos.
	Ctx context.Context
}

func NewRouter(opts Options) http.Handler {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recover)
	if opts.MetricsEnabled {
		r.Use(middleware.Metrics)
	}

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	if opts.RateRPS > 0 {
		r.Use(middleware.NewRateLimiter(opts.RateRPS, opts.RateBurst, middleware.KeyByUserOrIP).Handler)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if opts.SwaggerEnabled {
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	store := opts.Store
	grantsRepo := opts.Grants
	if opts.DB != nil {
		if store == nil {
			store = pg.NewMedicationsStore(opts.DB)
		}
		if grantsRepo == nil {
			grantsRepo = pg.NewCaregiversRepo(opts.DB)
		}
	}
	if store == nil {
		store = mem.NewMedicationsStore()
	}
	if grantsRepo == nil {
		grantsRepo = mem.NewCaregiversRepo()
	}

	// Un solo cache compartido: el coordinador, el CRUD y el hub ven el mismo estado.
	cache := medications.NewCache(store)

	// Services por módulo
	medSvc := medications.NewService(store, cache)
	coord := doses.NewCoordinator(store, cache, log)
	grantsSvc := caregivers.NewService(grantsRepo)

	hub := realtime.NewHub(cache, log)
	if opts.Ctx != nil {
		go func() {
			<-opts.Ctx.Done()
			hub.Close()
		}()
	}

	// Rutas por módulo
	medications.RegisterRoutes(r, medSvc)
	doses.RegisterRoutes(r, coord, medSvc, opts.Photos)
	caregivers.RegisterRoutes(r, grantsSvc, medSvc)
	r.Get("/ws", hub.ServeWS)

	return r
}
