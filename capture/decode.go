package capture

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
)

const (
	pixFmtYUYV  webcam.PixelFormat = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
	pixFmtMJPEG webcam.PixelFormat = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
)

// preferredFormats is the order formats are tried in. YUYV comes first
// because many UVC cameras emit MJPEG without Huffman tables.
var preferredFormats = []webcam.PixelFormat{pixFmtYUYV, pixFmtMJPEG}

func decodeFrame(format webcam.PixelFormat, buf []byte, width, height int) (image.Image, error) {
	switch format {
	case pixFmtYUYV:
		return decodeYUYV(buf, width, height)
	case pixFmtMJPEG:
		img, err := jpeg.Decode(bytes.NewReader(buf))
		if err != nil {
			return nil, errors.Wrap(err, "can not decode mjpeg frame")
		}
		return img, nil
	}
	return nil, errors.Errorf("unsupported pixel format %08x", uint32(format))
}

// decodeYUYV copies a packed YUYV 4:2:2 buffer into a planar image. Drivers
// may pad every line, so the stride is taken from the buffer length.
func decodeYUYV(buf []byte, width, height int) (*image.YCbCr, error) {
	if width <= 0 || height <= 0 || width%2 != 0 {
		return nil, errors.Errorf("invalid yuyv frame size %dx%d", width, height)
	}
	stride := width * 2
	if len(buf) < stride*height {
		return nil, errors.Errorf("short yuyv frame: %d bytes for %dx%d", len(buf), width, height)
	}
	if padded := len(buf) / height; padded > stride {
		stride = padded
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := 0; y < height; y++ {
		row := buf[y*stride : y*stride+width*2]
		yOff := y * img.YStride
		cOff := y * img.CStride
		for x := 0; x < width; x += 2 {
			p := row[x*2 : x*2+4]
			img.Y[yOff+x] = p[0]
			img.Cb[cOff+x/2] = p[1]
			img.Y[yOff+x+1] = p[2]
			img.Cr[cOff+x/2] = p[3]
		}
	}
	return img, nil
}
