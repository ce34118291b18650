// Package testutil provides fixtures and mock servers shared by package tests.
package testutil

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/jonas-p/go-shp"
)

// Feature is a fixture boundary record.
type Feature struct {
	ID    string
	Rings [][][2]float64
}

// Square returns a closed square ring with its lower left corner at (x, y).
// Clockwise rings are outer boundaries in shapefile order.
func Square(x, y, size float64, clockwise bool) [][2]float64 {
	if clockwise {
		return [][2]float64{{x, y}, {x, y + size}, {x + size, y + size}, {x + size, y}, {x, y}}
	}
	return [][2]float64{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}
}

// WriteShapefile writes a polygon shapefile with a single string attribute
// named idField.
func WriteShapefile(t *testing.T, path, idField string, features []Feature) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		t.Fatalf("create shapefile: %v", err)
	}
	defer w.Close()
	if err := w.SetFields([]shp.Field{shp.StringField(idField, 8)}); err != nil {
		t.Fatalf("set fields: %v", err)
	}
	for _, f := range features {
		parts := make([][]shp.Point, 0, len(f.Rings))
		for _, ring := range f.Rings {
			pts := make([]shp.Point, 0, len(ring))
			for _, p := range ring {
				pts = append(pts, shp.Point{X: p[0], Y: p[1]})
			}
			parts = append(parts, pts)
		}
		poly := shp.Polygon(*shp.NewPolyLine(parts))
		row := w.Write(&poly)
		if err := w.WriteAttribute(int(row), 0, f.ID); err != nil {
			t.Fatalf("write attribute: %v", err)
		}
	}
}

// WriteGeoJSON writes a FeatureCollection of Polygon features with the id
// stored under idField.
func WriteGeoJSON(t *testing.T, path, idField string, features []Feature) {
	t.Helper()
	type geom struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}
	type feature struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Geometry   geom           `json:"geometry"`
	}
	doc := struct {
		Type     string    `json:"type"`
		Features []feature `json:"features"`
	}{Type: "FeatureCollection"}
	for _, f := range features {
		doc.Features = append(doc.Features, feature{
			Type:       "Feature",
			Properties: map[string]any{idField: f.ID},
			Geometry:   geom{Type: "Polygon", Coordinates: f.Rings},
		})
	}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal geojson: %v", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatalf("write geojson: %v", err)
	}
}
