package capture

import (
	"image"
	"log/slog"
	"time"

	"github.com/blackjack/webcam"
)

const (
	// pumpTimeout is how long the pump waits for the driver, in seconds.
	pumpTimeout = 1
	retryDelay  = 500 * time.Millisecond
)

// streamer is the part of *webcam.Webcam the frame pump needs.
type streamer interface {
	WaitForFrame(timeout uint32) error
	ReadFrame() ([]byte, error)
	StopStreaming() error
	Close() error
}

// camBuffer reads the device on its own goroutine and keeps only the latest
// decoded frame, so readers never wait on the driver.
type camBuffer struct {
	dev    streamer
	decode func(buf []byte) (image.Image, error)

	frame chan image.Image
	stop  chan struct{}
	done  chan struct{}
}

func newCamBuffer(dev streamer, decode func(buf []byte) (image.Image, error)) *camBuffer {
	return &camBuffer{
		dev:    dev,
		decode: decode,
		frame:  make(chan image.Image, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (c *camBuffer) start() {
	go func() {
		defer close(c.done)
		c.run()
	}()
}

func (c *camBuffer) run() {
	for !c.stopped() {
		err := c.dev.WaitForFrame(pumpTimeout)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			slog.Warn("Frame wait failed", "error", err)
			c.sleep(retryDelay)
			continue
		}

		buf, err := c.dev.ReadFrame()
		if err != nil {
			slog.Warn("Read frame failed", "error", err)
			c.sleep(retryDelay)
			continue
		}
		if len(buf) == 0 {
			continue
		}

		// buf points into the driver's mmap area, decoding copies it out
		img, err := c.decode(buf)
		if err != nil {
			slog.Debug("Dropping frame", "error", err)
			continue
		}
		if isBlank(img) {
			continue
		}
		c.put(img)
	}
}

// put replaces whatever frame is waiting. The pump is the only sender, so
// the send never blocks once the slot is drained.
func (c *camBuffer) put(img image.Image) {
	select {
	case <-c.frame:
	default:
	}
	c.frame <- img
}

// next returns the waiting frame, or nil when none shows up within wait.
func (c *camBuffer) next(wait time.Duration) image.Image {
	select {
	case img := <-c.frame:
		return img
	default:
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case img := <-c.frame:
		return img
	case <-t.C:
		return nil
	}
}

func (c *camBuffer) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *camBuffer) sleep(d time.Duration) {
	select {
	case <-c.stop:
	case <-time.After(d):
	}
}

// halt stops the pump and waits for it, which can take up to pumpTimeout.
func (c *camBuffer) halt() {
	close(c.stop)
	<-c.done
}
