// Command import loads building footprints and attributes into the database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bayrakli/etap-backend/internal/config"
	"github.com/bayrakli/etap-backend/internal/database"
	"github.com/bayrakli/etap-backend/internal/geodata"
	"github.com/bayrakli/etap-backend/internal/ingest"
	"github.com/bayrakli/etap-backend/internal/logging"
	"github.com/bayrakli/etap-backend/internal/repository"
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

	geometry := flag.String("geometry", cfg.GeometryPath, "building footprint GeoJSON")
	batchSize := flag.Int("batch", ingest.DefaultBatchSize, "buildings per transaction")
	flag.Parse()

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

	records, err := geodata.FileSource{Path: *geometry}.Load(ctx)
	if err != nil {
		logger.Error("Failed to read footprints", "error", err)
		return 1
	}

	importer := ingest.NewImporter(repository.NewBuildingRepository(db), *batchSize)
	if _, err := importer.Import(ctx, records); err != nil {
		logger.Error("Import failed", "error", err)
		return 1
	}
	return 0
}
