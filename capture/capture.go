// Package capture reads frames from a local camera.
package capture

import (
	"fmt"
	"image"
	"strconv"

	"github.com/pkg/errors"
)

var (
	// ErrDeviceUnavailable is matched by every error returned when a
	// camera can not be opened.
	ErrDeviceUnavailable = errors.New("camera device unavailable")
	// ErrNoFrame is returned by ReadFrame when no usable frame could be
	// read this time. The next read may succeed.
	ErrNoFrame = errors.New("no frame available")
)

// Source is an open camera.
type Source interface {
	ReadFrame() (image.Image, error)
	Close() error
}

type Option struct {
	// Device is either an index ("0") or a device path ("/dev/video0").
	Device string
	Width  int
	Height int
}

// DeviceError reports why a device could not be opened.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("can not open camera %s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

func (e *DeviceError) Is(target error) bool {
	return target == ErrDeviceUnavailable
}

// DevicePath maps a numeric device to its V4L2 node.
func DevicePath(device string) string {
	if idx, err := strconv.Atoi(device); err == nil && idx >= 0 {
		return fmt.Sprintf("/dev/video%d", idx)
	}
	return device
}

// DeviceIndex parses a numeric device. Device paths of the form
// /dev/videoN are accepted too.
func DeviceIndex(device string) (int, error) {
	var idx int
	if _, err := fmt.Sscanf(device, "/dev/video%d", &idx); err == nil {
		return idx, nil
	}
	idx, err := strconv.Atoi(device)
	if err != nil || idx < 0 {
		return 0, errors.Errorf("device %q is not a camera index", device)
	}
	return idx, nil
}
