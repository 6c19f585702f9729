package main

import (
	"context"
	"driver-schedule-service/internal/adapters/cache"
	"driver-schedule-service/internal/adapters/repositories"
	"driver-schedule-service/internal/config"
	"driver-schedule-service/internal/platform/db"
	"driver-schedule-service/internal/platform/obs"
	"driver-schedule-service/internal/services"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
)

const usage = `usage: dbtool <command> [flags]

commands:
  init                 create tables and indexes
  prune -days N        delete schedules older than N days and expired cached routes
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if !config.LoadDotEnv() {
		log.Println("No .env file found (using environment variables)")
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := obs.NewLogger(cfg.Logging.Level, "console")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	dialect, err := db.ParseDialect(cfg.Database.Driver)
	if err != nil {
		logger.Fatal("parse driver", zap.Error(err))
	}
	dsn := cfg.Database.Path
	if dialect == db.Postgres {
		dsn = cfg.Database.URL
	}

	conn, err := db.Connect(dialect, dsn)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer conn.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "init":
		logger.Info("initializing database schema", zap.String("db", string(dialect)))
		if err := repositories.InitSchema(ctx, conn); err != nil {
			logger.Fatal("schema initialization failed", zap.Error(err))
		}
		logger.Info("schema ready")

	case "prune":
		fs := flag.NewFlagSet("prune", flag.ExitOnError)
		days := fs.Int("days", 30, "delete schedules created more than this many days ago")
		_ = fs.Parse(os.Args[2:])
		if *days < 1 {
			logger.Fatal("prune: -days must be at least 1", zap.Int("days", *days))
		}

		svc := services.NewScheduleService(services.ScheduleServiceDeps{
			Repo:   repositories.NewSQLScheduleRepository(conn, dialect, logger),
			Logger: logger,
		})
		n, err := svc.Prune(ctx, time.Duration(*days)*24*time.Hour)
		if err != nil {
			logger.Fatal("prune schedules failed", zap.Error(err))
		}
		logger.Info("pruned schedules", zap.Int64("deleted", n), zap.Int("days", *days))

		routes := cache.NewSQLRouteCache(conn, dialect, cfg.Planner.RouteCacheTTL, logger)
		purged, err := routes.Purge(ctx)
		if err != nil {
			logger.Fatal("purge route cache failed", zap.Error(err))
		}
		logger.Info("purged expired routes", zap.Int64("deleted", purged))

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}
