// Package absensi records attendance by recognizing faces seen by a
// camera.
//
// A Session owns the camera and the gallery of registered faces. It is
// driven by a single caller: the UI event loop calls Tick periodically and
// Register when the user asks to enroll a face. None of its methods are
// safe for concurrent use.
package absensi

import (
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/abihf/absensi/attendance"
	"github.com/abihf/absensi/capture"
	"github.com/abihf/absensi/facerec"
	"github.com/abihf/absensi/gallery"
	"github.com/pkg/errors"
)

// Recognizer finds faces in a frame and computes their descriptors.
type Recognizer interface {
	// LocateFaces returns the bounding box of every face in the frame.
	LocateFaces(frame image.Image) ([]image.Rectangle, error)
	// EncodeFaces returns one descriptor per box, in the same order.
	EncodeFaces(frame image.Image, boxes []image.Rectangle) ([]facerec.Descriptor, error)
}

type State int

const (
	StateIdle State = iota
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Option struct {
	OpenCamera func() (capture.Source, error)
	Recognizer Recognizer
	Store      *gallery.Store
	Attendance *attendance.Log
	// Tolerance is the largest descriptor distance accepted as a match.
	Tolerance float64
	Logger    *slog.Logger
}

type Session struct {
	cam        capture.Source
	rec        Recognizer
	store      *gallery.Store
	gallery    *gallery.Gallery
	attendance *attendance.Log
	tolerance  float64
	logger     *slog.Logger

	state   State
	ticking bool
	ticks   uint64
}

// Recognition is one face found during a tick.
type Recognition struct {
	Box      image.Rectangle
	Name     string
	Distance float64
}

// TickResult is what one tick produced. Frame is nil when no frame could
// be read; otherwise it is the frame with recognized faces annotated.
type TickResult struct {
	Seq    uint64
	Frame  *image.RGBA
	Faces  []Recognition
	Marked []string
	Err    error
}

// NewSession loads the gallery and opens the camera. It fails with an
// error matching capture.ErrDeviceUnavailable when there is no camera.
func NewSession(opt *Option) (*Session, error) {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tolerance := opt.Tolerance
	if tolerance <= 0 {
		tolerance = facerec.DefaultTolerance
	}

	g, err := opt.Store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "can not load registered faces")
	}

	cam, err := opt.OpenCamera()
	if err != nil {
		logger.Error("Unable to access the camera", "error", err)
		return nil, errors.Wrap(err, "unable to access the camera")
	}

	return &Session{
		cam:        cam,
		rec:        opt.Recognizer,
		store:      opt.Store,
		gallery:    g,
		attendance: opt.Attendance,
		tolerance:  tolerance,
		logger:     logger,
		state:      StateIdle,
	}, nil
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Ticking() bool {
	return s.ticking
}

// Identities returns the registered names in match order.
func (s *Session) Identities() []string {
	return s.gallery.Names()
}

// Start makes the session live and enables ticking. It returns true only
// when ticking was off, so the caller knows to schedule the first tick.
func (s *Session) Start() bool {
	if s.state == StateClosed || s.ticking {
		return false
	}
	s.state = StateLive
	s.ticking = true
	s.logger.Info("Attendance started")
	return true
}

// Pause stops ticking until the next Start.
func (s *Session) Pause() bool {
	if !s.ticking {
		return false
	}
	s.ticking = false
	s.logger.Info("Attendance paused")
	return true
}

// Tick reads one frame, recognizes the faces in it and records attendance
// for every registered face. Nothing that goes wrong here ends the
// session: a frame read failure yields a result without a frame, a
// processing failure a result with a ProcessingError. Tick returns nil if
// the session is not ticking.
func (s *Session) Tick() *TickResult {
	if s.state != StateLive || !s.ticking {
		return nil
	}
	s.ticks++
	res := &TickResult{Seq: s.ticks}

	img, err := s.cam.ReadFrame()
	if err != nil {
		s.logger.Warn("Unable to capture frame from camera", "tick", res.Seq, "error", err)
		res.Err = err
		return res
	}
	res.Frame = toRGBA(img)

	func() {
		defer func() {
			if r := recover(); r != nil {
				res.Err = &ProcessingError{Err: errors.Errorf("panic: %v", r)}
			}
		}()
		if err := s.process(res); err != nil {
			res.Err = &ProcessingError{Err: err}
		}
	}()
	if res.Err != nil {
		s.logger.Error("Error during frame processing", "tick", res.Seq, "error", res.Err)
	}
	return res
}

func (s *Session) process(res *TickResult) error {
	boxes, err := s.rec.LocateFaces(res.Frame)
	if err != nil {
		return errors.Wrap(err, "locate faces")
	}
	if len(boxes) == 0 {
		return nil
	}

	descs, err := s.rec.EncodeFaces(res.Frame, boxes)
	if err != nil {
		return errors.Wrap(err, "encode faces")
	}
	if len(descs) != len(boxes) {
		return errors.Errorf("got %d descriptors for %d faces", len(descs), len(boxes))
	}

	for i, box := range boxes {
		name, dist := s.gallery.Nearest(descs[i], s.tolerance)
		res.Faces = append(res.Faces, Recognition{Box: box, Name: name, Distance: dist})
		if name == gallery.Unknown {
			continue
		}

		written, err := s.attendance.Mark(name)
		if err != nil {
			return errors.Wrapf(err, "mark attendance for %s", name)
		}
		if written {
			res.Marked = append(res.Marked, name)
		}
		annotateFace(res.Frame, box, name)
	}
	return nil
}

// Register captures a frame and saves the first face in it under name,
// replacing any face previously registered with that name. Nothing is
// written and the gallery is unchanged when it fails.
func (s *Session) Register(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if err := gallery.ValidateName(name); err != nil {
		return err
	}
	if s.state == StateClosed {
		return ErrClosed
	}

	img, err := s.cam.ReadFrame()
	if err != nil {
		return errors.Wrap(err, "can not capture image from camera")
	}
	frame := toRGBA(img)

	boxes, err := s.rec.LocateFaces(frame)
	if err != nil {
		return errors.Wrap(err, "locate faces")
	}
	if len(boxes) == 0 {
		return ErrNoFace
	}

	descs, err := s.rec.EncodeFaces(frame, boxes[:1])
	if err != nil {
		return errors.Wrap(err, "encode face")
	}
	if len(descs) != 1 {
		return errors.Errorf("got %d descriptors for 1 face", len(descs))
	}

	if err := s.store.Save(name, descs[0]); err != nil {
		return err
	}
	s.gallery.Put(name, descs[0])
	s.logger.Info("Face registered", "name", name, "faces_in_frame", len(boxes))
	return nil
}

// Close stops ticking and releases the camera. Only the first call does
// anything.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	s.ticking = false
	s.logger.Info("Closing session", "ticks", s.ticks)
	return s.cam.Close()
}
