// Package geometry loads district boundary polygons from shapefiles or GeoJSON.
//
// Two lookup strategies are supported: a combined file holding every district
// (indexed by an id attribute) and one file per district located through a
// path pattern. Both return the same multi-polygon shape so rendering does not
// depend on how the boundaries were stored.
package geometry

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
)

// ErrNotFound is returned when a district has no usable boundary data: an
// unknown id, a missing file, or a file that could not be decoded.
var ErrNotFound = errors.New("geometry not found")

// Point is a planar coordinate. X is longitude, Y is latitude.
type Point struct{ X, Y float64 }

// Ring is a closed sequence of points.
type Ring []Point

// Polygon is a set of rings; the first ring is the outer boundary and the rest
// are holes.
type Polygon struct {
	Rings []Ring
}

// Geometry is every polygon belonging to one district.
type Geometry struct {
	DistrictID string
	Polygons   []Polygon
}

// Empty reports whether there is nothing to draw.
func (g Geometry) Empty() bool {
	for _, p := range g.Polygons {
		for _, r := range p.Rings {
			if len(r) >= 3 {
				return false
			}
		}
	}
	return true
}

// Bounds returns the bounding rectangle of all rings.
func (g Geometry) Bounds() r2.Rect {
	b := r2.EmptyRect()
	for _, p := range g.Polygons {
		for _, r := range p.Rings {
			for _, pt := range r {
				b = b.AddPoint(r2.Point{X: pt.X, Y: pt.Y})
			}
		}
	}
	return b
}

// Loader resolves a district id to its boundary geometry.
type Loader interface {
	Load(ctx context.Context, districtID string) (Geometry, error)
}

// signedArea is positive for counter-clockwise rings.
func signedArea(r Ring) float64 {
	var a float64
	for i := range r {
		j := (i + 1) % len(r)
		a += r[i].X*r[j].Y - r[j].X*r[i].Y
	}
	return a / 2
}

// assemble groups rings into polygons. Clockwise rings start a new polygon
// (shapefile convention); counter-clockwise rings are holes of the previous
// one. A leading counter-clockwise ring is treated as an outer ring.
func assemble(rings []Ring) []Polygon {
	var out []Polygon
	for _, r := range rings {
		if len(r) < 3 {
			continue
		}
		if signedArea(r) < 0 || len(out) == 0 {
			out = append(out, Polygon{Rings: []Ring{r}})
			continue
		}
		last := &out[len(out)-1]
		last.Rings = append(last.Rings, r)
	}
	return out
}

// NormalizeID trims attribute padding and zero pads numeric ids, so "1",
// "1.0" and " 001" all become "001".
func NormalizeID(s string) string {
	s = strings.Trim(s, " \x00\t")
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < 1000 {
		return pad(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f < 1000 && f == float64(int(f)) {
		return pad(int(f))
	}
	return s
}

func pad(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}
