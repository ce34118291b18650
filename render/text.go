package render

import (
	"image"
	"image/color"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// maxCaptionLines bounds the caption; overflow is elided.
const maxCaptionLines = 6

type faceSet struct {
	title   font.Face
	date    font.Face
	caption font.Face
}

// newFaceSet scales text with the canvas, 800 px being the reference.
func newFaceSet(size int) faceSet {
	k := float64(size) / DefaultSize
	return faceSet{
		title:   resolveFontFace(28*k, basicfont.Face7x13),
		date:    resolveFontFace(20*k, basicfont.Face7x13),
		caption: resolveFontFace(18*k, basicfont.Face7x13),
	}
}

func (r *Renderer) drawHeader(img *image.RGBA, band image.Rectangle, title, dateRange string) {
	th := r.faces.title.Metrics().Height.Ceil()
	dh := r.faces.date.Metrics().Height.Ceil()
	gap := th / 4
	top := band.Min.Y + (band.Dy()-th-gap-dh)/2
	drawCentered(img, title, band.Min.X, band.Max.X, top+r.faces.title.Metrics().Ascent.Ceil(), black, r.faces.title)
	if dateRange != "" {
		drawCentered(img, dateRange, band.Min.X, band.Max.X, top+th+gap+r.faces.date.Metrics().Ascent.Ceil(), black, r.faces.date)
	}
}

func (r *Renderer) drawCaption(img *image.RGBA, band image.Rectangle, text string) {
	face := r.faces.caption
	lines := wrapText(face, text, band.Dx(), maxCaptionLines)
	lh := face.Metrics().Height.Ceil()
	top := band.Min.Y + (band.Dy()-lh*len(lines))/2
	if top < band.Min.Y {
		top = band.Min.Y
	}
	ascent := face.Metrics().Ascent.Ceil()
	for i, line := range lines {
		drawCentered(img, line, band.Min.X, band.Max.X, top+i*lh+ascent, black, face)
	}
}

// wrapText breaks text into lines no wider than width. Words wider than a
// line are placed on their own line. At most maxLines are returned; the
// last one ends with an ellipsis when text was cut.
func wrapText(face font.Face, text string, width, maxLines int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		candidate := line + " " + w
		if font.MeasureString(face, candidate).Ceil() <= width {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = w
	}
	lines = append(lines, line)

	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
		last := lines[maxLines-1]
		for last != "" && font.MeasureString(face, last+"...").Ceil() > width {
			i := strings.LastIndexByte(last, ' ')
			if i < 0 {
				break
			}
			last = last[:i]
		}
		lines[maxLines-1] = last + "..."
	}
	return lines
}

func drawCentered(img *image.RGBA, text string, x1, x2, baseline int, c color.RGBA, face font.Face) {
	w := font.MeasureString(face, text).Ceil()
	x := x1 + (x2-x1-w)/2
	if x < x1 {
		x = x1
	}
	drawText(img, text, x, baseline, c, face)
}

func drawText(img *image.RGBA, text string, x, y int, c color.RGBA, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func resolveFontFace(size float64, fallback font.Face) font.Face {
	face := getGoFontFace(size)
	if face != nil {
		return face
	}
	return fallback
}

var (
	gofontOnce sync.Once
	gofontErr  error
	gofontData *opentype.Font
)

// getGoFontFace returns a new Go Regular face, or nil if the embedded font
// cannot be parsed. The parsed font is shared; faces are per renderer.
func getGoFontFace(size float64) font.Face {
	gofontOnce.Do(func() {
		gofontData, gofontErr = opentype.Parse(goregular.TTF)
	})
	if gofontErr != nil || gofontData == nil {
		return nil
	}
	face, err := opentype.NewFace(gofontData, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil
	}
	return face
}
