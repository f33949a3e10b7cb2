// Command betsd serves the lottery bets API and reconciles bets against official draws.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/lotterybets/internal/app/metrics"
	"github.com/R3E-Network/lotterybets/internal/config"
	"github.com/R3E-Network/lotterybets/internal/drawprovider"
	"github.com/R3E-Network/lotterybets/internal/inflight"
	"github.com/R3E-Network/lotterybets/internal/middleware"
	"github.com/R3E-Network/lotterybets/internal/platform/migrations"
	"github.com/R3E-Network/lotterybets/internal/sweeper"
	"github.com/R3E-Network/lotterybets/pkg/logger"
	"github.com/R3E-Network/lotterybets/services/bets"
	"github.com/R3E-Network/lotterybets/services/bets/httpapi"
	"github.com/R3E-Network/lotterybets/services/bets/postgres"
)

func main() {
	envFile := flag.String("env", ".env", "optional .env file to load")
	migrate := flag.Bool("migrate", true, "apply database migrations on start")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.NewDefault("betsd").WithError(err).Fatal("load config")
	}
	log := logger.New("betsd", cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := config.LoadRulesOrDefault(cfg.RulesFile, log.Named("rules"))
	log.WithField("modalities", len(registry.Rules())).Info("rule table loaded")

	// Store
	var store bets.Store
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set; bets are kept in memory")
		store = bets.NewMemoryStore()
	} else {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("open database")
		}
		defer db.Close()
		if *migrate {
			if err := migrations.Apply(ctx, db); err != nil {
				log.WithError(err).Fatal("apply migrations")
			}
		}
		store = postgres.New(db)
	}

	// Cross-process guard
	var guard bets.Guard = inflight.NewMemory()
	if cfg.RedisURL != "" {
		redisGuard, err := inflight.NewRedisFromURL(cfg.RedisURL, log.Named("inflight"))
		if err != nil {
			log.WithError(err).Fatal("configure redis")
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisGuard.Ping(pingCtx); err != nil {
			log.WithError(err).Warn("redis unreachable; falling back to in-process guard")
		} else {
			guard = redisGuard
			defer redisGuard.Close()
		}
		pingCancel()
	} else {
		log.Warn("REDIS_URL not set; reconciliation is only guarded within this process")
	}

	provider, err := drawprovider.NewClient(
		&http.Client{Timeout: cfg.ProviderTimeout},
		cfg.ProviderURL,
		cfg.ProviderRPS,
		log.Named("drawprovider"),
	)
	if err != nil {
		log.WithError(err).Fatal("configure draw provider")
	}

	engine := bets.NewEngine(store, provider, registry, log.Named("reconcile"),
		bets.WithGuard(guard),
		bets.WithBatchConcurrency(cfg.BatchConcurrency),
	)
	svc := bets.NewService(store, registry, engine, log.Named("bets"))

	sweep := sweeper.New(store, engine, sweeper.Config{
		Schedule:  cfg.SweepSchedule,
		BatchSize: cfg.SweepBatchSize,
	}, log.Named("sweeper"))
	if err := sweep.Start(ctx); err != nil {
		log.WithError(err).Fatal("start sweeper")
	}

	// HTTP
	router := mux.NewRouter()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggingMiddleware(log.Named("http")))
	router.HandleFunc("/health", httpapi.HealthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	httpapi.NewHandler(svc, provider, log.Named("httpapi")).RegisterRoutes(router)

	auth := middleware.NewAuthMiddleware([]byte(cfg.JWTSecret), log.Named("auth"),
		[]string{"/health", "/metrics", "/rules", "/rules/", "/validate", "/draws/"})
	if auth.DevMode() {
		log.Warn("JWT_SECRET not set; trusting X-User-ID headers")
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, log.Named("ratelimit"))
	cors := middleware.NewCORSMiddleware(splitAndTrimCSV(cfg.CORSOrigins))

	var handler http.Handler = router
	handler = limiter.Handler(handler)
	handler = auth.Handler(handler)
	handler = cors.Handler(handler)
	handler = metrics.InstrumentHandler(handler)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(10 * time.Minute)
			}
		}
	}()

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("betsd listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
	sweep.Stop()
	cancel()

	log.Info("betsd stopped")
}

func splitAndTrimCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
