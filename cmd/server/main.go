package main

import (
	"context"
	"database/sql"
	"driver-schedule-service/internal/adapters/cache"
	"driver-schedule-service/internal/adapters/repositories"
	"driver-schedule-service/internal/adapters/routing"
	"driver-schedule-service/internal/api"
	"driver-schedule-service/internal/config"
	"driver-schedule-service/internal/metrics"
	"driver-schedule-service/internal/platform/db"
	"driver-schedule-service/internal/platform/obs"
	"driver-schedule-service/internal/ports"
	"driver-schedule-service/internal/services"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// main is the application composition root.
// It wires concrete adapters (SQL, Redis, ORS) behind ports and starts the HTTP server.
func main() {
	dotenv := config.LoadDotEnv()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := obs.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	if !dotenv {
		logger.Info("no .env file found, using environment variables")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialect, err := db.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return err
	}
	dsn := cfg.Database.Path
	if dialect == db.Postgres {
		dsn = cfg.Database.URL
	}

	conn, err := db.Connect(dialect, dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := repositories.InitSchema(ctx, conn); err != nil {
		return err
	}

	m := metrics.New()
	if err := m.RegisterDB(conn, string(dialect)); err != nil {
		return fmt.Errorf("register db metrics: %w", err)
	}

	routes, geocoder, closeRoutes, err := buildRouting(ctx, cfg, conn, dialect, logger)
	if err != nil {
		return err
	}
	defer closeRoutes()

	planner := services.NewSchedulePlanner(services.PlannerOptions{
		RequireFutureDeparture: cfg.Planner.RequireFutureDeparture,
		SafetyWait:             cfg.Planner.SafetyWait,
	})
	svc := services.NewScheduleService(services.ScheduleServiceDeps{
		Planner:  planner,
		Routes:   routes,
		Geocoder: geocoder,
		Repo:     repositories.NewSQLScheduleRepository(conn, dialect, logger),
		Metrics:  m,
		Logger:   logger,
	})

	router := api.NewRouter(api.RouterDeps{
		Service:        svc,
		DB:             conn,
		Metrics:        m,
		Logger:         logger,
		AllowedOrigins: cfg.Security.AllowedOrigins,
		RateLimitRPS:   cfg.Security.RateLimitRPS,
		RateLimitBurst: cfg.Security.RateLimitBurst,
	})

	// Timeouts are tuned for cold-cache route lookups (external API latency).
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("db", string(dialect)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildRouting picks the ORS client when an API key is configured and the
// straight-line mock otherwise. Routes are cached in Redis when REDIS_ADDR is
// set and in the database otherwise.
func buildRouting(
	ctx context.Context,
	cfg *config.Config,
	conn *sql.DB,
	dialect db.Dialect,
	logger *zap.Logger,
) (ports.RouteProvider, ports.Geocoder, func(), error) {
	if cfg.ORS.APIKey == "" {
		logger.Warn("ORS_API_KEY not set, using straight-line mock routing")
		mock := routing.NewMockRouteProvider(80, 25000)
		return mock, mock, func() {}, nil
	}

	var routeCache ports.RouteCache = cache.NewSQLRouteCache(conn, dialect, cfg.Planner.RouteCacheTTL, logger)
	closeFn := func() {}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		routeCache = cache.NewRedisRouteCache(client, cfg.Planner.RouteCacheTTL, logger)
		closeFn = func() { client.Close() }
	}

	provider, err := routing.NewORSProvider(routing.ORSOptions{
		APIKey:       cfg.ORS.APIKey,
		BaseURL:      cfg.ORS.BaseURL,
		Profile:      cfg.ORS.Profile,
		Timeout:      cfg.ORS.Timeout,
		MaxAttempts:  cfg.ORS.MaxAttempts,
		Backoff:      cfg.ORS.Backoff,
		RouteCache:   routeCache,
		GeocodeCache: cache.NewSQLGeocodeCache(conn, dialect, logger),
		Logger:       logger,
	})
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	return provider, provider, closeFn, nil
}
