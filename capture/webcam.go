package capture

import (
	"image"
	"log/slog"
	"time"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
)

// frameWait bounds how long ReadFrame blocks the caller.
const frameWait = 100 * time.Millisecond

// Camera is a V4L2 camera. Frames are pulled from the driver in the
// background and ReadFrame hands out the most recent one.
type Camera struct {
	dev    streamer
	buf    *camBuffer
	device string
	format webcam.PixelFormat
	width  int
	height int
	closed bool
}

// Open opens and starts streaming from a V4L2 device.
func Open(opt *Option) (*Camera, error) {
	device := DevicePath(opt.Device)
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, &DeviceError{Device: device, Err: err}
	}

	format, w, h, err := configure(cam, opt)
	if err != nil {
		cam.Close()
		return nil, &DeviceError{Device: device, Err: err}
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, &DeviceError{Device: device, Err: errors.Wrap(err, "Can not start streaming")}
	}

	slog.Info("Camera opened", "device", device, "width", w, "height", h,
		"format", formatName(format))
	return newCamera(cam, device, format, w, h), nil
}

// newCamera wraps a streaming device and starts pumping frames from it.
func newCamera(dev streamer, path string, format webcam.PixelFormat, width, height int) *Camera {
	c := &Camera{dev: dev, device: path, format: format, width: width, height: height}
	c.buf = newCamBuffer(dev, func(buf []byte) (image.Image, error) {
		return decodeFrame(c.format, buf, c.width, c.height)
	})
	c.buf.start()
	return c
}

func configure(cam *webcam.Webcam, opt *Option) (webcam.PixelFormat, int, int, error) {
	supported := cam.GetSupportedFormats()

	for _, want := range preferredFormats {
		if _, ok := supported[want]; !ok {
			continue
		}
		f, w, h, err := cam.SetImageFormat(want, uint32(opt.Width), uint32(opt.Height))
		if err != nil {
			slog.Debug("Camera rejected format", "format", formatName(want), "error", err)
			continue
		}
		if f != want {
			continue
		}
		return f, int(w), int(h), nil
	}

	return 0, 0, 0, errors.Errorf("no supported pixel format among %v", supported)
}

// ReadFrame returns the latest frame, waiting at most frameWait for one.
// Timeouts, undecodable buffers and blank warm-up frames all end up as
// ErrNoFrame.
func (c *Camera) ReadFrame() (image.Image, error) {
	if c.closed {
		return nil, errors.New("camera is closed")
	}

	img := c.buf.next(frameWait)
	if img == nil {
		return nil, errors.Wrap(ErrNoFrame, "no frame ready")
	}
	return img, nil
}

// Close stops the pump and releases the device. It is safe to call more
// than once.
func (c *Camera) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.buf.halt()

	if err := c.dev.StopStreaming(); err != nil {
		slog.Warn("Failed to stop streaming", "device", c.device, "error", err)
	}
	return c.dev.Close()
}

func formatName(f webcam.PixelFormat) string {
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	return string(b)
}
