// Package render draws a district slide: a title band, the district
// outline fitted to the canvas, and a word-wrapped fact caption.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"

	"github.com/golang/geo/r2"
	"golang.org/x/image/vector"

	"github.com/onnwee/congress-slides/geometry"
)

// DefaultSize is the slide edge length in pixels.
const DefaultSize = 800

var (
	// SkyBlue is the default polygon fill (#87CEEB).
	SkyBlue = color.RGBA{0x87, 0xCE, 0xEB, 0xFF}
	black   = color.RGBA{0, 0, 0, 0xFF}
	white   = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
)

// Options configure a Renderer.
type Options struct {
	Size       int
	Fill       color.RGBA
	Edge       color.RGBA
	EdgeWidth  float64
	Background color.RGBA
}

// DefaultOptions returns the stock slide styling.
func DefaultOptions() Options {
	return Options{Size: DefaultSize, Fill: SkyBlue, Edge: black, EdgeWidth: 1.5, Background: white}
}

// Artifact is an encoded slide image.
type Artifact struct {
	PNG    []byte
	Width  int
	Height int
	Empty  bool // no drawable geometry
}

// Renderer draws slides. Font faces are not safe for concurrent use, so
// Render serializes on mu.
type Renderer struct {
	opts Options

	mu    sync.Mutex
	faces faceSet
}

// New returns a renderer for opts, filling zero fields with defaults.
func New(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.Size <= 0 {
		opts.Size = def.Size
	}
	if opts.Fill == (color.RGBA{}) {
		opts.Fill = def.Fill
	}
	if opts.Edge == (color.RGBA{}) {
		opts.Edge = def.Edge
	}
	if opts.EdgeWidth <= 0 {
		opts.EdgeWidth = def.EdgeWidth
	}
	if opts.Background == (color.RGBA{}) {
		opts.Background = def.Background
	}
	return &Renderer{opts: opts, faces: newFaceSet(opts.Size)}
}

// Size returns the canvas edge length.
func (r *Renderer) Size() int { return r.opts.Size }

// Title returns the slide heading for an ordinal such as "1st".
func Title(ordinal string) string {
	return fmt.Sprintf("%s Congressional Session", ordinal)
}

// layout splits the square canvas into title, map and caption bands.
type layout struct {
	title   image.Rectangle
	mapArea image.Rectangle
	caption image.Rectangle
}

func newLayout(size int) layout {
	titleH := size * 14 / 100
	captionH := size * 22 / 100
	margin := size * 4 / 100
	return layout{
		title:   image.Rect(0, 0, size, titleH),
		mapArea: image.Rect(margin, titleH+margin/2, size-margin, size-captionH-margin/2),
		caption: image.Rect(margin, size-captionH, size-margin, size-margin/2),
	}
}

// Render draws one slide. Zero geometries, empty polygons or degenerate
// bounds still yield a titled, captioned artifact with Empty set.
func (r *Renderer) Render(ordinal string, geoms []geometry.Geometry, fact, dateRange string) (Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.opts.Size
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: r.opts.Background}, image.Point{}, draw.Src)

	lay := newLayout(size)
	empty := !r.drawGeometry(img, lay.mapArea, geoms)
	r.drawHeader(img, lay.title, Title(ordinal), dateRange)
	r.drawCaption(img, lay.caption, fact)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Artifact{}, fmt.Errorf("encode slide png: %w", err)
	}
	return Artifact{PNG: buf.Bytes(), Width: size, Height: size, Empty: empty}, nil
}

// projector maps lon/lat into a pixel rectangle with an equirectangular
// projection scaled by cos(mid latitude), aspect preserved and centered.
type projector struct {
	bounds r2.Rect
	kx     float64
	scale  float64
	offX   float64
	offY   float64
}

func newProjector(bounds r2.Rect, area image.Rectangle) (projector, bool) {
	if bounds.IsEmpty() {
		return projector{}, false
	}
	midLat := (bounds.Y.Lo + bounds.Y.Hi) / 2
	kx := math.Cos(midLat * math.Pi / 180)
	if kx <= 0 {
		kx = 1
	}
	pw := bounds.X.Length() * kx
	ph := bounds.Y.Length()
	if pw <= 0 || ph <= 0 {
		return projector{}, false
	}
	aw, ah := float64(area.Dx()), float64(area.Dy())
	scale := math.Min(aw/pw, ah/ph)
	return projector{
		bounds: bounds,
		kx:     kx,
		scale:  scale,
		offX:   float64(area.Min.X) + (aw-pw*scale)/2,
		offY:   float64(area.Min.Y) + (ah-ph*scale)/2,
	}, true
}

func (p projector) project(pt geometry.Point) (float32, float32) {
	x := p.offX + (pt.X-p.bounds.X.Lo)*p.kx*p.scale
	y := p.offY + (p.bounds.Y.Hi-pt.Y)*p.scale
	return float32(x), float32(y)
}

// drawGeometry fills and outlines every polygon. It reports whether
// anything was drawn.
func (r *Renderer) drawGeometry(img *image.RGBA, area image.Rectangle, geoms []geometry.Geometry) bool {
	bounds := r2.EmptyRect()
	for _, g := range geoms {
		bounds = bounds.Union(g.Bounds())
	}
	proj, ok := newProjector(bounds, area)
	if !ok {
		return false
	}

	size := img.Bounds().Dx()
	fill := vector.NewRasterizer(size, size)
	fill.DrawOp = draw.Over
	edges := vector.NewRasterizer(size, size)
	edges.DrawOp = draw.Over
	half := float32(r.opts.EdgeWidth / 2)

	var drawn bool
	for _, g := range geoms {
		for _, poly := range g.Polygons {
			for _, ring := range poly.Rings {
				if len(ring) < 3 {
					continue
				}
				drawn = true
				x0, y0 := proj.project(ring[0])
				fill.MoveTo(x0, y0)
				px, py := x0, y0
				for _, pt := range ring[1:] {
					x, y := proj.project(pt)
					fill.LineTo(x, y)
					strokeSegment(edges, px, py, x, y, half)
					px, py = x, y
				}
				fill.ClosePath()
				strokeSegment(edges, px, py, x0, y0, half)
			}
		}
	}
	if !drawn {
		return false
	}
	fill.Draw(img, img.Bounds(), image.NewUniform(r.opts.Fill), image.Point{})
	edges.Draw(img, img.Bounds(), image.NewUniform(r.opts.Edge), image.Point{})
	return true
}

// strokeSegment adds a quad of half-width w around the segment.
func strokeSegment(z *vector.Rasterizer, x1, y1, x2, y2, w float32) {
	dx, dy := x2-x1, y2-y1
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	nx, ny := -dy/l*w, dx/l*w
	z.MoveTo(x1+nx, y1+ny)
	z.LineTo(x2+nx, y2+ny)
	z.LineTo(x2-nx, y2-ny)
	z.LineTo(x1-nx, y1-ny)
	z.ClosePath()
}
