package ui

import (
	"image"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// upper half block: foreground paints the top pixel, background the bottom
const halfBlock = "▀"

// fitSize scales a w x h picture to fit cols x rows terminal cells, where
// each cell shows two vertically stacked pixels.
func fitSize(w, h, cols, rows int) (int, int) {
	if w <= 0 || h <= 0 || cols <= 0 || rows <= 0 {
		return 0, 0
	}
	maxW, maxH := cols, rows*2
	outW, outH := maxW, h*maxW/w
	if outH > maxH {
		outW, outH = w*maxH/h, maxH
	}
	// keep an even pixel height so every row has a bottom half
	outH &^= 1
	return max(outW, 1), max(outH, 2)
}

// renderFrame draws img as truecolor half blocks within cols x rows cells.
// Every rendered row ends with a newline.
func renderFrame(img image.Image, cols, rows int) string {
	b := img.Bounds()
	w, h := fitSize(b.Dx(), b.Dy(), cols, rows)
	if w == 0 {
		return ""
	}

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, b, draw.Src, nil)

	var sb strings.Builder
	sb.Grow(w * h / 2 * 40)
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x++ {
			top := small.RGBAAt(x, y)
			bottom := small.RGBAAt(x, y+1)
			writeColor(&sb, "38", top.R, top.G, top.B)
			writeColor(&sb, "48", bottom.R, bottom.G, bottom.B)
			sb.WriteString(halfBlock)
		}
		sb.WriteString("\x1b[0m\n")
	}
	return sb.String()
}

func writeColor(sb *strings.Builder, layer string, r, g, b uint8) {
	sb.WriteString("\x1b[")
	sb.WriteString(layer)
	sb.WriteString(";2;")
	sb.WriteString(strconv.Itoa(int(r)))
	sb.WriteByte(';')
	sb.WriteString(strconv.Itoa(int(g)))
	sb.WriteByte(';')
	sb.WriteString(strconv.Itoa(int(b)))
	sb.WriteByte('m')
}
