package gallery

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/abihf/absensi/facerec"
	"github.com/pkg/errors"
)

// Ext is the file extension of a stored descriptor.
const Ext = ".face"

var ErrInvalidName = errors.New("invalid identity name")

// Store persists one descriptor file per identity in a directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

func (s *Store) Dir() string {
	return s.dir
}

// Load reads every descriptor in the directory, creating it if needed.
// Files that can not be read or decoded are skipped with a warning.
func (s *Store) Load() (*Gallery, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "can not create gallery dir %s", s.dir)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "can not list gallery dir %s", s.dir)
	}

	g := New()
	for _, entry := range entries {
		fileName := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(fileName, Ext) {
			continue
		}
		name := strings.TrimSuffix(fileName, Ext)
		if name == "" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, fileName))
		if err != nil {
			s.logger.Warn("Skipping unreadable face file", "file", fileName, "error", err)
			continue
		}

		var desc facerec.Descriptor
		if err := desc.Unmarshal(data); err != nil {
			s.logger.Warn("Skipping corrupt face file", "file", fileName, "error", err)
			continue
		}
		g.Put(name, desc)
	}

	s.logger.Info("Gallery loaded", "dir", s.dir, "identities", g.Len())
	return g, nil
}

// Save writes the descriptor for name, replacing any previous one.
func (s *Store) Save(name string, desc facerec.Descriptor) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return errors.Wrapf(err, "can not create gallery dir %s", s.dir)
	}

	var buf bytes.Buffer
	if err := desc.Marshal(&buf); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+"-*.tmp")
	if err != nil {
		return errors.Wrap(err, "can not create temp face file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.Wrap(err, "can not write face file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "can not write face file")
	}

	path := s.path(name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "can not save %s", path)
	}
	s.logger.Info("Face saved", "name", name, "file", path)
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+Ext)
}

// ValidateName rejects names that can not be used as a file name inside
// the gallery directory.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.Wrap(ErrInvalidName, "empty")
	case strings.HasPrefix(name, "."):
		return errors.Wrapf(ErrInvalidName, "%q starts with a dot", name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return errors.Wrapf(ErrInvalidName, "%q contains a path separator", name)
	}
	return nil
}
