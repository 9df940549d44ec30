package capture

import (
	"image"
	"image/color"
)

// blankLevel and blankRatio describe the all-black frames a V4L2 camera
// delivers while its sensor warms up.
const (
	blankLevel = 16
	blankRatio = 0.995
)

func isBlank(img image.Image) bool {
	switch m := img.(type) {
	case *image.YCbCr:
		return isBlankLuma(m.Y)
	case *image.Gray:
		return isBlankLuma(m.Pix)
	}

	b := img.Bounds()
	dark, total := 0, 0
	for y := b.Min.Y; y < b.Max.Y; y += 4 {
		for x := b.Min.X; x < b.Max.X; x += 4 {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y < blankLevel {
				dark++
			}
			total++
		}
	}
	return total > 0 && float64(dark)/float64(total) > blankRatio
}

func isBlankLuma(luma []byte) bool {
	total := len(luma)
	if total == 0 {
		return true
	}
	dark := 0
	for i := 0; i < total; i++ {
		if luma[i] < blankLevel {
			dark++
		}
	}
	return float64(dark)/float64(total) > blankRatio
}
