// Package opencv captures frames through OpenCV's VideoCapture, for
// cameras or platforms the V4L2 backend can not drive.
package opencv

import (
	"image"

	"github.com/abihf/absensi/capture"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

type Camera struct {
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	device string
	closed bool
}

var _ capture.Source = (*Camera)(nil)

func Open(opt *capture.Option) (*Camera, error) {
	idx, err := capture.DeviceIndex(opt.Device)
	if err != nil {
		return nil, &capture.DeviceError{Device: opt.Device, Err: err}
	}

	vc, err := gocv.VideoCaptureDevice(idx)
	if err != nil {
		return nil, &capture.DeviceError{Device: opt.Device, Err: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &capture.DeviceError{Device: opt.Device, Err: errors.New("device did not open")}
	}

	if opt.Width > 0 && opt.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(opt.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(opt.Height))
	}

	return &Camera{vc: vc, mat: gocv.NewMat(), device: opt.Device}, nil
}

func (c *Camera) ReadFrame() (image.Image, error) {
	if c.closed {
		return nil, errors.New("camera is closed")
	}
	if ok := c.vc.Read(&c.mat); !ok {
		return nil, errors.Wrapf(capture.ErrNoFrame, "can not read device %s", c.device)
	}
	if c.mat.Empty() {
		return nil, errors.Wrap(capture.ErrNoFrame, "empty frame")
	}

	// ToImage converts OpenCV's BGR layout and copies out of the Mat
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(capture.ErrNoFrame, err.Error())
	}
	return img, nil
}

func (c *Camera) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.mat.Close()
	return c.vc.Close()
}
