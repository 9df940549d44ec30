package absensi

import (
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abihf/absensi/attendance"
	"github.com/abihf/absensi/capture"
	"github.com/abihf/absensi/facerec"
	"github.com/abihf/absensi/gallery"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCamera struct {
	frames []image.Image
	errs   []error
	reads  int
	closes int
}

func (c *fakeCamera) ReadFrame() (image.Image, error) {
	i := c.reads
	c.reads++
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i < len(c.frames) && c.frames[i] != nil {
		return c.frames[i], nil
	}
	return grayFrame(), nil
}

func (c *fakeCamera) Close() error {
	c.closes++
	return nil
}

type fakeRecognizer struct {
	boxes  []image.Rectangle
	descs  []facerec.Descriptor
	err    error
	panics bool
	calls  int
}

func (r *fakeRecognizer) LocateFaces(image.Image) ([]image.Rectangle, error) {
	r.calls++
	if r.panics {
		panic("index out of range")
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.boxes, nil
}

func (r *fakeRecognizer) EncodeFaces(_ image.Image, boxes []image.Rectangle) ([]facerec.Descriptor, error) {
	return r.descs[:len(boxes)], nil
}

func grayFrame() image.Image {
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

func descAt(i int) facerec.Descriptor {
	var d facerec.Descriptor
	d[i] = 1
	return d
}

type fixture struct {
	t        *testing.T
	cam      *fakeCamera
	rec      *fakeRecognizer
	store    *gallery.Store
	log      *attendance.Log
	clock    time.Time
	dedupe   bool
	openErr  error
	galleryD string
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	return &fixture{
		t:        t,
		cam:      &fakeCamera{},
		rec:      &fakeRecognizer{},
		clock:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local),
		galleryD: filepath.Join(dir, "registered_users"),
	}
}

func (f *fixture) logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fixture) open() (*Session, error) {
	f.store = gallery.NewStore(f.galleryD, f.logger())
	f.log = attendance.New(&attendance.Option{
		Path:   filepath.Join(filepath.Dir(f.galleryD), "attendance.csv"),
		Dedupe: f.dedupe,
		Logger: f.logger(),
		Now:    func() time.Time { return f.clock },
	})
	return NewSession(&Option{
		OpenCamera: func() (capture.Source, error) {
			if f.openErr != nil {
				return nil, f.openErr
			}
			return f.cam, nil
		},
		Recognizer: f.rec,
		Store:      f.store,
		Attendance: f.log,
		Tolerance:  facerec.DefaultTolerance,
		Logger:     f.logger(),
	})
}

func (f *fixture) mustOpen() *Session {
	s, err := f.open()
	require.NoError(f.t, err)
	return s
}

func (f *fixture) attendanceLines() []string {
	data, err := os.ReadFile(f.log.Path())
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(f.t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestRegisterThenRecognize(t *testing.T) {
	f := newFixture(t)
	box := image.Rect(10, 10, 40, 40)
	f.rec.boxes = []image.Rectangle{box}
	f.rec.descs = []facerec.Descriptor{descAt(0)}

	s := f.mustOpen()
	defer s.Close()

	require.NoError(t, s.Register("  alice "))
	assert.FileExists(t, filepath.Join(f.galleryD, "alice"+gallery.Ext))
	assert.Equal(t, []string{"alice"}, s.Identities())
	assert.Equal(t, StateIdle, s.State())

	require.True(t, s.Start())
	res := s.Tick()
	require.NotNil(t, res)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Frame)
	require.Len(t, res.Faces, 1)
	assert.Equal(t, "alice", res.Faces[0].Name)
	assert.Equal(t, box, res.Faces[0].Box)
	assert.Equal(t, []string{"alice"}, res.Marked)

	// the box outline is drawn on the frame
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, res.Frame.RGBAAt(box.Min.X, box.Min.Y))

	assert.Equal(t, []string{"alice,2024-03-01 09:00:00"}, f.attendanceLines())
}

func TestUnknownFaceIsNotMarked(t *testing.T) {
	f := newFixture(t)
	f.rec.boxes = []image.Rectangle{image.Rect(10, 10, 40, 40)}
	f.rec.descs = []facerec.Descriptor{descAt(0)}

	s := f.mustOpen()
	defer s.Close()
	require.NoError(t, s.Register("alice"))

	f.rec.descs = []facerec.Descriptor{descAt(1)}
	s.Start()
	res := s.Tick()
	require.NotNil(t, res)
	require.NoError(t, res.Err)
	require.Len(t, res.Faces, 1)
	assert.Equal(t, gallery.Unknown, res.Faces[0].Name)
	assert.Empty(t, res.Marked)
	assert.Empty(t, f.attendanceLines())

	// unknown faces are not annotated
	assert.Equal(t, color.RGBA{128, 128, 128, 255}, res.Frame.RGBAAt(10, 10))
}

func TestRegisteredFacesSurviveRestart(t *testing.T) {
	f := newFixture(t)
	f.rec.boxes = []image.Rectangle{image.Rect(0, 0, 20, 20)}
	f.rec.descs = []facerec.Descriptor{descAt(3)}

	s := f.mustOpen()
	require.NoError(t, s.Register("bob"))
	require.NoError(t, s.Close())

	f.cam = &fakeCamera{}
	s = f.mustOpen()
	defer s.Close()
	assert.Equal(t, []string{"bob"}, s.Identities())

	s.Start()
	res := s.Tick()
	require.Len(t, res.Faces, 1)
	assert.Equal(t, "bob", res.Faces[0].Name)
}

func TestFrameReadFailureDoesNotStopTicking(t *testing.T) {
	f := newFixture(t)
	f.cam.errs = []error{errors.Wrap(capture.ErrNoFrame, "timeout"), nil}
	f.rec.boxes = nil

	s := f.mustOpen()
	defer s.Close()
	s.Start()

	res := s.Tick()
	require.NotNil(t, res)
	assert.Nil(t, res.Frame)
	assert.ErrorIs(t, res.Err, capture.ErrNoFrame)
	assert.True(t, s.Ticking())
	assert.Equal(t, StateLive, s.State())

	res = s.Tick()
	require.NotNil(t, res)
	assert.NoError(t, res.Err)
	assert.NotNil(t, res.Frame)
	assert.Equal(t, uint64(2), res.Seq)
}

func TestProcessingErrorIsContained(t *testing.T) {
	f := newFixture(t)
	f.rec.err = errors.New("model exploded")

	s := f.mustOpen()
	defer s.Close()
	s.Start()

	res := s.Tick()
	require.NotNil(t, res)
	var perr *ProcessingError
	require.ErrorAs(t, res.Err, &perr)
	assert.NotNil(t, res.Frame)

	f.rec.err = nil
	f.rec.panics = true
	res = s.Tick()
	require.NotNil(t, res)
	require.ErrorAs(t, res.Err, &perr)
	assert.Contains(t, perr.Error(), "index out of range")

	f.rec.panics = false
	res = s.Tick()
	require.NotNil(t, res)
	assert.NoError(t, res.Err)
	assert.Equal(t, StateLive, s.State())
}

func TestOpenCameraFailure(t *testing.T) {
	f := newFixture(t)
	f.openErr = &capture.DeviceError{Device: "/dev/video0", Err: os.ErrNotExist}

	s, err := f.open()
	assert.Nil(t, s)
	assert.ErrorIs(t, err, capture.ErrDeviceUnavailable)
}

func TestRegisterRejectsEmptyName(t *testing.T) {
	f := newFixture(t)
	f.rec.boxes = []image.Rectangle{image.Rect(0, 0, 20, 20)}
	f.rec.descs = []facerec.Descriptor{descAt(0)}

	s := f.mustOpen()
	defer s.Close()

	for _, name := range []string{"", "   ", "\t\n"} {
		assert.ErrorIs(t, s.Register(name), ErrEmptyName, "%q", name)
	}
	assert.Equal(t, 0, f.cam.reads, "camera must not be touched")
	assert.Empty(t, s.Identities())

	entries, err := os.ReadDir(f.galleryD)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRegisterRejectsUnsafeName(t *testing.T) {
	f := newFixture(t)
	s := f.mustOpen()
	defer s.Close()

	assert.ErrorIs(t, s.Register("../etc/passwd"), gallery.ErrInvalidName)
	assert.Empty(t, s.Identities())
}

func TestRegisterWithoutFace(t *testing.T) {
	f := newFixture(t)
	s := f.mustOpen()
	defer s.Close()

	assert.ErrorIs(t, s.Register("carol"), ErrNoFace)
	assert.Empty(t, s.Identities())
	assert.NoFileExists(t, filepath.Join(f.galleryD, "carol"+gallery.Ext))
}

func TestRegisterUsesFirstFace(t *testing.T) {
	f := newFixture(t)
	f.rec.boxes = []image.Rectangle{image.Rect(0, 0, 20, 20), image.Rect(30, 0, 50, 20)}
	f.rec.descs = []facerec.Descriptor{descAt(0), descAt(1)}

	s := f.mustOpen()
	defer s.Close()
	require.NoError(t, s.Register("dave"))

	loaded, err := f.store.Load()
	require.NoError(t, err)
	got, ok := loaded.Get("dave")
	require.True(t, ok)
	assert.Equal(t, descAt(0), got)
}

func TestRegisterOverwrites(t *testing.T) {
	f := newFixture(t)
	f.rec.boxes = []image.Rectangle{image.Rect(0, 0, 20, 20)}
	f.rec.descs = []facerec.Descriptor{descAt(0)}

	s := f.mustOpen()
	defer s.Close()
	require.NoError(t, s.Register("erin"))

	f.rec.descs = []facerec.Descriptor{descAt(5)}
	require.NoError(t, s.Register("erin"))
	assert.Equal(t, []string{"erin"}, s.Identities())

	s.Start()
	res := s.Tick()
	require.Len(t, res.Faces, 1)
	assert.Equal(t, "erin", res.Faces[0].Name)
}

func TestDedupeMarksOncePerDay(t *testing.T) {
	f := newFixture(t)
	f.dedupe = true
	f.rec.boxes = []image.Rectangle{image.Rect(0, 0, 20, 20)}
	f.rec.descs = []facerec.Descriptor{descAt(0)}

	s := f.mustOpen()
	defer s.Close()
	require.NoError(t, s.Register("alice"))
	s.Start()

	for i := 0; i < 5; i++ {
		res := s.Tick()
		require.NoError(t, res.Err)
		if i == 0 {
			assert.Equal(t, []string{"alice"}, res.Marked)
		} else {
			assert.Empty(t, res.Marked)
		}
	}
	assert.Len(t, f.attendanceLines(), 1)

	f.clock = f.clock.Add(24 * time.Hour)
	res := s.Tick()
	assert.Equal(t, []string{"alice"}, res.Marked)
	assert.Len(t, f.attendanceLines(), 2)
}

func TestWithoutDedupeEveryTickIsLogged(t *testing.T) {
	f := newFixture(t)
	f.rec.boxes = []image.Rectangle{image.Rect(0, 0, 20, 20)}
	f.rec.descs = []facerec.Descriptor{descAt(0)}

	s := f.mustOpen()
	defer s.Close()
	require.NoError(t, s.Register("alice"))
	s.Start()
	for i := 0; i < 3; i++ {
		s.Tick()
	}
	assert.Len(t, f.attendanceLines(), 3)
}

func TestStartPauseLifecycle(t *testing.T) {
	f := newFixture(t)
	s := f.mustOpen()

	assert.Nil(t, s.Tick(), "idle session does not tick")
	assert.False(t, s.Pause())

	assert.True(t, s.Start())
	assert.False(t, s.Start(), "second start is a no-op")
	assert.True(t, s.Ticking())

	require.NotNil(t, s.Tick())
	assert.Equal(t, 1, f.cam.reads)

	assert.True(t, s.Pause())
	assert.Nil(t, s.Tick())
	assert.Equal(t, StateLive, s.State())

	assert.True(t, s.Start())
	require.NotNil(t, s.Tick())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, f.cam.closes)
	assert.Equal(t, StateClosed, s.State())
	assert.False(t, s.Start())
	assert.Nil(t, s.Tick())
	assert.ErrorIs(t, s.Register("alice"), ErrClosed)
}
