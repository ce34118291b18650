package geometry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type geoJSON struct {
	Type       string          `json:"type"`
	Features   []geoJSON       `json:"features"`
	Properties map[string]any  `json:"properties"`
	Geometry   *geoGeometry    `json:"geometry"`
	Geometries []geoGeometry   `json:"geometries"`
	Coords     json.RawMessage `json:"coordinates"`
}

type geoGeometry struct {
	Type       string          `json:"type"`
	Coords     json.RawMessage `json:"coordinates"`
	Geometries []geoGeometry   `json:"geometries"`
}

// readGeoJSON reads a FeatureCollection, a single Feature, or a bare
// geometry. Only Polygon and MultiPolygon geometries contribute rings.
func readGeoJSON(path string) ([]record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}
	var doc geoJSON
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	switch strings.ToLower(doc.Type) {
	case "featurecollection":
		out := make([]record, 0, len(doc.Features))
		for _, f := range doc.Features {
			rec, err := featureRecord(f)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, nil
	case "feature":
		rec, err := featureRecord(doc)
		if err != nil {
			return nil, err
		}
		return []record{rec}, nil
	default:
		polys, err := geometryPolygons(geoGeometry{Type: doc.Type, Coords: doc.Coords, Geometries: doc.Geometries})
		if err != nil {
			return nil, err
		}
		return []record{{attrs: map[string]string{}, polygons: polys}}, nil
	}
}

func featureRecord(f geoJSON) (record, error) {
	rec := record{attrs: make(map[string]string, len(f.Properties))}
	for k, v := range f.Properties {
		if v == nil {
			continue
		}
		if n, ok := v.(float64); ok && n == float64(int64(n)) {
			rec.attrs[k] = fmt.Sprintf("%d", int64(n))
			continue
		}
		rec.attrs[k] = fmt.Sprint(v)
	}
	if f.Geometry == nil {
		return rec, nil
	}
	polys, err := geometryPolygons(*f.Geometry)
	if err != nil {
		return record{}, err
	}
	rec.polygons = polys
	return rec, nil
}

func geometryPolygons(g geoGeometry) ([]Polygon, error) {
	switch strings.ToLower(g.Type) {
	case "polygon":
		var coords [][][]float64
		if err := json.Unmarshal(g.Coords, &coords); err != nil {
			return nil, fmt.Errorf("decode polygon: %w", err)
		}
		if p, ok := polygonFromCoords(coords); ok {
			return []Polygon{p}, nil
		}
		return nil, nil
	case "multipolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(g.Coords, &coords); err != nil {
			return nil, fmt.Errorf("decode multipolygon: %w", err)
		}
		out := make([]Polygon, 0, len(coords))
		for _, part := range coords {
			if p, ok := polygonFromCoords(part); ok {
				out = append(out, p)
			}
		}
		return out, nil
	case "geometrycollection":
		var out []Polygon
		for _, sub := range g.Geometries {
			polys, err := geometryPolygons(sub)
			if err != nil {
				return nil, err
			}
			out = append(out, polys...)
		}
		return out, nil
	default:
		return nil, nil
	}
}

// polygonFromCoords keeps GeoJSON ring order: first outer, rest holes.
func polygonFromCoords(coords [][][]float64) (Polygon, bool) {
	var p Polygon
	for _, ring := range coords {
		r := make(Ring, 0, len(ring))
		for _, pos := range ring {
			if len(pos) < 2 {
				continue
			}
			r = append(r, Point{X: pos[0], Y: pos[1]})
		}
		if len(r) >= 3 {
			p.Rings = append(p.Rings, r)
		}
	}
	return p, len(p.Rings) > 0
}
