package absensi

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	annotationColor     = color.RGBA{0, 255, 0, 255}
	annotationThickness = 2
)

// toRGBA returns a private RGBA copy of img that can be drawn on.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// annotateFace outlines box and writes the name just inside its bottom
// left corner.
func annotateFace(img *image.RGBA, box image.Rectangle, name string) {
	drawRect(img, box, annotationColor, annotationThickness)
	drawLabel(img, image.Pt(box.Min.X+6, box.Max.Y-6), name, annotationColor)
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.Color, thickness int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		e = e.Intersect(img.Bounds())
		if e.Empty() {
			continue
		}
		draw.Draw(img, e, src, image.Point{}, draw.Over)
	}
}

// drawLabel writes text with its baseline starting at dot.
func drawLabel(img *image.RGBA, dot image.Point, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(dot.X, dot.Y),
	}
	d.DrawString(text)
}
