// Package attendance appends attendance records to a CSV file.
package attendance

import (
	"encoding/csv"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
)

const (
	TimeLayout = "2006-01-02 15:04:05"
	dateLayout = "2006-01-02"
)

type Option struct {
	// Path of the CSV file, created on first write.
	Path string
	// Dedupe limits every identity to one record per calendar day for the
	// lifetime of the Log. Without it every call writes a record.
	Dedupe bool
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Log is an append-only attendance log. It is not safe for concurrent use.
type Log struct {
	path   string
	dedupe bool
	logger *slog.Logger
	now    func() time.Time

	seen map[string]struct{}
}

func New(opt *Option) *Log {
	l := &Log{
		path:   opt.Path,
		dedupe: opt.Dedupe,
		logger: opt.Logger,
		now:    opt.Now,
		seen:   make(map[string]struct{}),
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

func (l *Log) Path() string {
	return l.path
}

// Mark appends a record for name stamped with the current time. It
// reports false without writing when the record is a duplicate.
func (l *Log) Mark(name string) (bool, error) {
	now := l.now()
	key := name + "\x00" + now.Format(dateLayout)
	if l.dedupe {
		if _, ok := l.seen[key]; ok {
			return false, nil
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, errors.Wrapf(err, "can not open attendance log %s", l.path)
	}
	defer f.Close()

	stamp := now.Format(TimeLayout)
	w := csv.NewWriter(f)
	if err := w.Write([]string{name, stamp}); err != nil {
		return false, errors.Wrap(err, "can not write attendance record")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return false, errors.Wrap(err, "can not write attendance record")
	}

	if l.dedupe {
		l.seen[key] = struct{}{}
	}
	l.logger.Info("Attendance recorded", "name", name, "time", stamp)
	return true, nil
}
