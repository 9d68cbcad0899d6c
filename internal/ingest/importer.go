// Package ingest loads building footprints and their attributes into the
// buildings table.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/text/unicode/norm"

	"github.com/bayrakli/etap-backend/internal/geodata"
	"github.com/bayrakli/etap-backend/internal/models"
)

// DefaultBatchSize is the number of buildings written per transaction
const DefaultBatchSize = 500

// Footprint properties
const (
	propRegion      = "name_2"
	propOSMID       = "osm_id"
	propType        = "building"
	propLevels      = "building:levels"
	propStartDate   = "start_date"
	propMaterial    = "building:material"
	propStreet      = "addr:street"
	propHouseNumber = "addr:housenumber"
	propFlats       = "building:flats"
	propRisk        = "risk_puani"
)

// BuildingWriter stores batches of buildings
type BuildingWriter interface {
	UpsertBatch(ctx context.Context, buildings []models.Building) error
}

// Result counts what an import did
type Result struct {
	Read     int
	Imported int
	Skipped  int // no usable building id
}

// Importer writes footprint records as buildings
type Importer struct {
	writer    BuildingWriter
	batchSize int
	logger    *slog.Logger
}

// NewImporter creates an importer; a non-positive batch size uses the default
func NewImporter(writer BuildingWriter, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Importer{
		writer:    writer,
		batchSize: batchSize,
		logger:    slog.Default().With("component", "importer"),
	}
}

// Import upserts every record that carries a building id. Records without
// geometry are still imported; the rebuild reports them.
func (im *Importer) Import(ctx context.Context, records []geodata.Record) (Result, error) {
	res := Result{Read: len(records)}
	batch := make([]models.Building, 0, im.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.writer.UpsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to import batch ending at record %d: %w", res.Imported+res.Skipped+len(batch), err)
		}
		res.Imported += len(batch)
		batch = batch[:0]
		im.logger.Debug("Imported batch", "imported", res.Imported, "total", res.Read)
		return nil
	}

	for _, rec := range records {
		if !rec.HasID() {
			res.Skipped++
			continue
		}
		batch = append(batch, BuildingFromRecord(rec))
		if len(batch) == im.batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}

	im.logger.Info("Import finished", "read", res.Read, "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}

// BuildingFromRecord maps footprint properties onto a building
func BuildingFromRecord(rec geodata.Record) models.Building {
	b := models.Building{BuildingID: rec.ID}

	if s := rec.StringProperty(propRegion); s != "" {
		region := norm.NFC.String(s)
		b.RegionName = &region
	}
	b.OSMID = stringPtr(rec.StringProperty(propOSMID))
	b.BuildingType = stringPtr(rec.StringProperty(propType))
	b.Material = stringPtr(rec.StringProperty(propMaterial))
	b.Street = stringPtr(rec.StringProperty(propStreet))
	b.HouseNumber = stringPtr(rec.StringProperty(propHouseNumber))

	if v, ok := rec.IntProperty(propLevels); ok {
		b.Floors = &v
	}
	if v, ok := rec.IntProperty(propStartDate); ok {
		b.YearBuilt = &v
	}
	if v, ok := rec.IntProperty(propFlats); ok {
		b.Flats = &v
	}
	if v, ok := rec.FloatProperty(propRisk); ok {
		b.RiskScore = &v
	}
	return b
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
