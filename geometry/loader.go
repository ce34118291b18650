package geometry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
)

// Lookup modes.
const (
	ModeCombined    = "combined"
	ModePerDistrict = "per-district"
)

// DefaultIDField is the attribute that carries the district code.
const DefaultIDField = "district_n"

// readBoundaryFile dispatches on extension.
func readBoundaryFile(path string) ([]record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return readShapefile(path)
	case ".geojson", ".json":
		return readGeoJSON(path)
	default:
		return nil, fmt.Errorf("unsupported boundary file %q", path)
	}
}

// Combined serves every district from one pre-indexed bulk file.
type Combined struct {
	path  string
	index map[string][]Polygon
}

// OpenCombined reads the bulk file and indexes its records by idField.
// Records sharing an id are merged.
func OpenCombined(path, idField string) (*Combined, error) {
	if idField == "" {
		idField = DefaultIDField
	}
	recs, err := readBoundaryFile(path)
	if err != nil {
		return nil, err
	}
	c := &Combined{path: path, index: make(map[string][]Polygon)}
	var unkeyed int
	for _, rec := range recs {
		id := NormalizeID(rec.attrs[idField])
		if id == "" {
			unkeyed++
			continue
		}
		c.index[id] = append(c.index[id], rec.polygons...)
	}
	if unkeyed > 0 {
		slog.Warn("boundary records without district id", slog.String("path", path), slog.String("field", idField), slog.Int("count", unkeyed), slog.String("component", "geometry"))
	}
	slog.Info("combined boundaries indexed", slog.String("path", path), slog.Int("records", len(recs)), slog.Int("districts", len(c.index)), slog.String("component", "geometry"))
	return c, nil
}

// Load returns the indexed polygons for districtID.
func (c *Combined) Load(ctx context.Context, districtID string) (Geometry, error) {
	if err := ctx.Err(); err != nil {
		return Geometry{}, err
	}
	polys, ok := c.index[districtID]
	if !ok || len(polys) == 0 {
		return Geometry{}, fmt.Errorf("%w: district %s not in %s", ErrNotFound, districtID, c.path)
	}
	return Geometry{DistrictID: districtID, Polygons: polys}, nil
}

// IDs lists the indexed district ids in ascending order.
func (c *Combined) IDs() []string {
	out := make([]string, 0, len(c.index))
	for id := range c.index {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PerDistrict reads one boundary file per district. The path is built by
// replacing "{id}" in Pattern with the district id.
type PerDistrict struct {
	Pattern string
}

// NewPerDistrict returns a per-district loader for pattern.
func NewPerDistrict(pattern string) *PerDistrict { return &PerDistrict{Pattern: pattern} }

// Path returns the file that holds districtID.
func (p *PerDistrict) Path(districtID string) string {
	return strings.ReplaceAll(p.Pattern, "{id}", districtID)
}

// Load reads every polygon record in the district's file.
func (p *PerDistrict) Load(ctx context.Context, districtID string) (Geometry, error) {
	if err := ctx.Err(); err != nil {
		return Geometry{}, err
	}
	path := p.Path(districtID)
	recs, err := readBoundaryFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Geometry{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Geometry{}, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	g := Geometry{DistrictID: districtID}
	for _, rec := range recs {
		g.Polygons = append(g.Polygons, rec.polygons...)
	}
	if len(g.Polygons) == 0 {
		return Geometry{}, fmt.Errorf("%w: %s has no polygons", ErrNotFound, path)
	}
	return g, nil
}

// NewLoader builds the loader for mode.
func NewLoader(mode, combinedPath, pattern, idField string) (Loader, error) {
	switch mode {
	case ModeCombined, "":
		return OpenCombined(combinedPath, idField)
	case ModePerDistrict:
		if !strings.Contains(pattern, "{id}") {
			return nil, fmt.Errorf("per-district pattern %q must contain {id}", pattern)
		}
		return NewPerDistrict(pattern), nil
	default:
		return nil, fmt.Errorf("unknown geometry mode %q", mode)
	}
}
