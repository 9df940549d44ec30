// Package facerec holds the face descriptor type and the distance
// arithmetic used to match a detected face against registered ones.
package facerec

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Dim is the length of a descriptor produced by the dlib ResNet model.
const Dim = 128

const descriptorVersion = 1

var descriptorMagic = [4]byte{'F', 'A', 'C', 'E'}

var ErrCorruptDescriptor = errors.New("corrupt face descriptor")

// Descriptor is a face embedding. It has the same layout as go-face's
// face.Descriptor so the two convert directly.
type Descriptor [Dim]float32

type descriptorHeader struct {
	Magic   [4]byte
	Version uint16
	Dim     uint16
}

// Distance returns the euclidean distance between two descriptors.
func (d *Descriptor) Distance(other *Descriptor) float64 {
	var sum float64
	for i := range d {
		diff := float64(d[i]) - float64(other[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Marshal writes the descriptor in its on-disk form.
func (d *Descriptor) Marshal(w io.Writer) error {
	hdr := descriptorHeader{Magic: descriptorMagic, Version: descriptorVersion, Dim: Dim}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return errors.Wrap(err, "write descriptor header")
	}
	if err := binary.Write(w, binary.LittleEndian, d); err != nil {
		return errors.Wrap(err, "write descriptor body")
	}
	return nil
}

// Unmarshal reads a descriptor written by Marshal. Trailing bytes are
// treated as corruption.
func (d *Descriptor) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)

	var hdr descriptorHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return errors.Wrap(ErrCorruptDescriptor, "short header")
	}
	if hdr.Magic != descriptorMagic {
		return errors.Wrap(ErrCorruptDescriptor, "bad magic")
	}
	if hdr.Version != descriptorVersion {
		return errors.Wrapf(ErrCorruptDescriptor, "unsupported version %d", hdr.Version)
	}
	if hdr.Dim != Dim {
		return errors.Wrapf(ErrCorruptDescriptor, "dimension %d, want %d", hdr.Dim, Dim)
	}

	var out Descriptor
	if err := binary.Read(r, binary.LittleEndian, &out); err != nil {
		return errors.Wrap(ErrCorruptDescriptor, "short body")
	}
	if r.Len() != 0 {
		return errors.Wrapf(ErrCorruptDescriptor, "%d trailing bytes", r.Len())
	}

	*d = out
	return nil
}
