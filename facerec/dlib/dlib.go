// Package dlib recognizes faces with the dlib models through go-face.
//
// The model directory must contain shape_predictor_5_face_landmarks.dat,
// dlib_face_recognition_resnet_model_v1.dat and, for CNN detection,
// mmod_human_face_detector.dat.
package dlib

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/Kagami/go-face"
	"github.com/abihf/absensi/facerec"
	"github.com/pkg/errors"
)

// minBoxIoU is how much a requested box must overlap a detected face to
// be given that face's descriptor.
const minBoxIoU = 0.5

type Recognizer struct {
	rec *face.Recognizer
	cnn bool

	// detection and encoding happen in one dlib pass, keep the last one so
	// LocateFaces followed by EncodeFaces on the same frame runs it once
	lastFrame image.Image
	lastFaces []face.Face
}

func NewRecognizer(modelDir string, cnn bool) (*Recognizer, error) {
	rec, err := face.NewRecognizer(modelDir)
	if err != nil {
		return nil, errors.Wrapf(err, "can not load models from %s", modelDir)
	}
	return &Recognizer{rec: rec, cnn: cnn}, nil
}

func (r *Recognizer) Close() {
	r.lastFrame = nil
	r.lastFaces = nil
	r.rec.Close()
}

func (r *Recognizer) LocateFaces(frame image.Image) ([]image.Rectangle, error) {
	faces, err := r.recognize(frame)
	if err != nil {
		return nil, err
	}

	boxes := make([]image.Rectangle, len(faces))
	for i, f := range faces {
		boxes[i] = f.Rectangle
	}
	return boxes, nil
}

func (r *Recognizer) EncodeFaces(frame image.Image, boxes []image.Rectangle) ([]facerec.Descriptor, error) {
	if len(boxes) == 0 {
		return nil, nil
	}

	faces, err := r.recognize(frame)
	if err != nil {
		return nil, err
	}

	rects := make([]image.Rectangle, len(faces))
	for i, f := range faces {
		rects[i] = f.Rectangle
	}
	pairs, err := facerec.PairByIoU(boxes, rects, minBoxIoU)
	if err != nil {
		return nil, err
	}

	descs := make([]facerec.Descriptor, len(boxes))
	for i, j := range pairs {
		descs[i] = facerec.Descriptor(faces[j].Descriptor)
	}
	return descs, nil
}

func (r *Recognizer) recognize(frame image.Image) ([]face.Face, error) {
	if frame == r.lastFrame && r.lastFrame != nil {
		return r.lastFaces, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 95}); err != nil {
		return nil, errors.Wrap(err, "can not encode frame")
	}

	var faces []face.Face
	var err error
	if r.cnn {
		faces, err = r.rec.RecognizeCNN(buf.Bytes())
	} else {
		faces, err = r.rec.Recognize(buf.Bytes())
	}
	if err != nil {
		return nil, errors.Wrap(err, "face recognition failed")
	}

	r.lastFrame = frame
	r.lastFaces = faces
	return faces, nil
}
