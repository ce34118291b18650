package geometry

import (
	"fmt"

	"github.com/jonas-p/go-shp"
)

// record is one feature read from a boundary file.
type record struct {
	attrs    map[string]string
	polygons []Polygon
}

// readShapefile reads every polygon record and its attributes. Non-polygon
// shapes are ignored. go-shp panics on some corrupt headers (for example a
// huge part count); those are reported as errors.
func readShapefile(path string) (out []record, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("corrupt shapefile %s: %v", path, rec)
		}
	}()

	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer r.Close()

	fields := r.Fields()
	for r.Next() {
		n, shape := r.Shape()
		var rings []Ring
		switch s := shape.(type) {
		case *shp.Polygon:
			rings = splitParts(s.Parts, s.Points)
		case *shp.PolygonZ:
			rings = splitParts(s.Parts, s.Points)
		case *shp.PolygonM:
			rings = splitParts(s.Parts, s.Points)
		default:
			continue
		}
		rec := record{attrs: make(map[string]string, len(fields)), polygons: assemble(rings)}
		for i, f := range fields {
			rec.attrs[f.String()] = r.ReadAttribute(n, i)
		}
		out = append(out, rec)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile: %w", err)
	}
	return out, nil
}

// splitParts cuts the flat point array into rings using the part offsets.
func splitParts(parts []int32, points []shp.Point) []Ring {
	rings := make([]Ring, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			continue
		}
		ring := make(Ring, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, Point{X: p.X, Y: p.Y})
		}
		rings = append(rings, ring)
	}
	return rings
}
