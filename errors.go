package absensi

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrEmptyName = errors.New("name must not be empty")
	ErrNoFace    = errors.New("no face detected")
	ErrClosed    = errors.New("session is closed")
)

// ProcessingError wraps a failure that happened while processing a frame
// inside a tick. It never ends the session.
type ProcessingError struct {
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("frame processing: %v", e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
