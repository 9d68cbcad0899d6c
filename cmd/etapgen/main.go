// Command etapgen rebuilds every zone (etap) from the building footprints.
//
// The rebuild replaces all zones in place. Run at most one instance against
// a database at a time; nothing here prevents two concurrent runs.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/bayrakli/etap-backend/internal/analysis/zoning"
	"github.com/bayrakli/etap-backend/internal/cache"
	"github.com/bayrakli/etap-backend/internal/config"
	"github.com/bayrakli/etap-backend/internal/database"
	"github.com/bayrakli/etap-backend/internal/geodata"
	"github.com/bayrakli/etap-backend/internal/logging"
	"github.com/bayrakli/etap-backend/internal/notify"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 2
	}

	etaps := flag.Int("etaps", cfg.EtapCount, "zones per region")
	buffer := flag.Float64("buffer", cfg.BufferMeters, "boundary buffer in meters")
	geometry := flag.String("geometry", cfg.GeometryPath, "building footprint GeoJSON")
	flag.Parse()

	cfg.EtapCount, cfg.BufferMeters, cfg.GeometryPath = *etaps, *buffer, *geometry
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		return 2
	}

	logger := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		return 1
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		return 1
	}

	// Cache and notifications are optional; the rebuild runs without them
	zoneCache, err := cache.Open(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Warn("Continuing without cache invalidation", "error", err)
		zoneCache = cache.Noop{}
	}
	publisher, err := notify.Dial(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Warn("Continuing without run notifications", "error", err)
		publisher = notify.Noop{}
	}
	defer publisher.Close()

	analyzer := zoning.NewAnalyzer(db, geodata.FileSource{Path: cfg.GeometryPath}, zoning.Options{
		EtapCount:    cfg.EtapCount,
		BufferMeters: cfg.BufferMeters,
		Publisher:    publisher,
		Invalidator:  zoneCache,
	})

	runID := uuid.NewString()
	if _, err := analyzer.Rebuild(ctx, runID); err != nil {
		logger.Error("Rebuild failed; rerun the full rebuild", "run_id", runID, "error", err)
		return 1
	}
	return 0
}
