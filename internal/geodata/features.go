// Package geodata reads building footprints from GeoJSON FeatureCollections.
//
// Features are decoded one at a time so that a single malformed feature does
// not reject the whole collection.
package geodata

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// IDProperty is the feature property that carries the building id
const IDProperty = "bina_id"

var (
	ErrMissingID       = errors.New("feature has no building id")
	ErrMissingGeometry = errors.New("feature has no geometry")
)

// Record is one decoded feature. Geometry is nil when the feature had none
// or when it could not be decoded; Err explains why.
type Record struct {
	Index      int
	ID         int64
	Geometry   geom.T
	Properties map[string]interface{}
	Err        error
}

// HasID reports whether the record carries a usable building id
func (r Record) HasID() bool {
	return r.ID != 0
}

type rawFeature struct {
	Type       string                 `json:"type"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// ReadFeatureCollection decodes every feature of a FeatureCollection.
// Only a malformed collection envelope is an error; per-feature problems are
// reported on the returned records.
func ReadFeatureCollection(r io.Reader) ([]Record, error) {
	var collection struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.NewDecoder(r).Decode(&collection); err != nil {
		return nil, fmt.Errorf("failed to decode feature collection: %w", err)
	}
	if collection.Type != "FeatureCollection" {
		return nil, fmt.Errorf("unsupported GeoJSON type: %q", collection.Type)
	}

	records := make([]Record, 0, len(collection.Features))
	for i, raw := range collection.Features {
		records = append(records, decodeFeature(i, raw))
	}
	return records, nil
}

func decodeFeature(index int, raw json.RawMessage) Record {
	rec := Record{Index: index}

	var f rawFeature
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		rec.Err = fmt.Errorf("feature %d: %w", index, err)
		return rec
	}
	rec.Properties = f.Properties

	id, err := parseID(f.Properties[IDProperty])
	if err != nil {
		rec.Err = fmt.Errorf("feature %d: %w", index, err)
		return rec
	}
	rec.ID = id

	trimmed := bytes.TrimSpace(f.Geometry)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		rec.Err = ErrMissingGeometry
		return rec
	}

	var g geom.T
	if err := geojson.Unmarshal(trimmed, &g); err != nil {
		rec.Err = fmt.Errorf("building %d: invalid geometry: %w", id, err)
		return rec
	}
	if g == nil || len(g.FlatCoords()) == 0 {
		rec.Err = ErrMissingGeometry
		return rec
	}
	rec.Geometry = g
	return rec
}

func parseID(v interface{}) (int64, error) {
	switch id := v.(type) {
	case nil:
		return 0, ErrMissingID
	case json.Number:
		if n, err := id.Int64(); err == nil && n != 0 {
			return n, nil
		}
		f, err := id.Float64()
		if err != nil || f == 0 || f != math.Trunc(f) {
			return 0, fmt.Errorf("%w: %q", ErrMissingID, id.String())
		}
		return int64(f), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil || n == 0 {
			return 0, fmt.Errorf("%w: %q", ErrMissingID, id)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: unexpected type %T", ErrMissingID, v)
	}
}

// StringProperty returns a trimmed string property, or "" when absent
func (r Record) StringProperty(key string) string {
	switch v := r.Properties[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// IntProperty returns an integer property. Strings such as "5" or "1987-03"
// are parsed from their leading digits.
func (r Record) IntProperty(key string) (int64, bool) {
	switch v := r.Properties[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		s := strings.TrimSpace(v)
		end := 0
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
		}
		if end > 0 {
			if n, err := strconv.ParseInt(s[:end], 10, 64); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// FileSource reads footprints from a GeoJSON file on disk
type FileSource struct {
	Path string
}

// Load reads and decodes the whole file
func (s FileSource) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geometry file: %w", err)
	}
	defer f.Close()

	records, err := ReadFeatureCollection(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return records, nil
}

// FloatProperty returns a numeric property given as a number or a numeric string
func (r Record) FloatProperty(key string) (float64, bool) {
	switch v := r.Properties[key].(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
