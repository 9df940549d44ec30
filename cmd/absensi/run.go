package main

import (
	"log/slog"
	"os"

	"github.com/abihf/absensi"
	"github.com/abihf/absensi/attendance"
	"github.com/abihf/absensi/capture"
	"github.com/abihf/absensi/capture/opencv"
	"github.com/abihf/absensi/config"
	"github.com/abihf/absensi/facerec/dlib"
	"github.com/abihf/absensi/gallery"
	"github.com/abihf/absensi/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func runTerminal(cmd *cobra.Command, args []string) error {
	logFile, err := logToFile(conf)
	if err != nil {
		return err
	}
	defer logFile.Close()

	if isAlreadyRun(conf.PidFile) {
		return errors.Errorf("already running, see %s", conf.PidFile)
	}
	if err := writeLockFile(conf.PidFile); err != nil {
		slog.Warn("Can not write pid file", "path", conf.PidFile, "error", err)
	} else {
		defer os.Remove(conf.PidFile)
	}

	rec, err := dlib.NewRecognizer(conf.ModelDir, conf.CNN)
	if err != nil {
		return errors.Wrap(err, "Can not initialize face recognizer")
	}
	defer rec.Close()

	session, err := openSession(conf, rec)
	if err != nil {
		return err
	}
	defer session.Close()

	model := ui.New(&ui.Option{
		Session:  session,
		Interval: conf.Interval(),
		OnLive: func() {
			daemon.SdNotify(false, daemon.SdNotifyReady)
		},
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	if conf.Socket != "" {
		ln, err := listenControl(conf.Socket)
		if err != nil {
			return err
		}
		defer ln.Close()
		go serveControl(ln, p)
	}

	slog.Info("Terminal started", "device", conf.Device, "backend", conf.Backend)
	_, err = p.Run()
	daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		return errors.Wrap(err, "terminal UI failed")
	}
	return nil
}

func openSession(c *config.Config, rec absensi.Recognizer) (*absensi.Session, error) {
	logger := slog.Default()
	return absensi.NewSession(&absensi.Option{
		OpenCamera: cameraOpener(c),
		Recognizer: rec,
		Store:      gallery.NewStore(c.GalleryDir, logger),
		Attendance: attendance.New(&attendance.Option{
			Path:   c.AttendanceFile,
			Dedupe: c.Dedupe,
			Logger: logger,
		}),
		Tolerance: c.Threshold,
		Logger:    logger,
	})
}

func cameraOpener(c *config.Config) func() (capture.Source, error) {
	opt := &capture.Option{Device: c.Device, Width: c.Width, Height: c.Height}
	return func() (capture.Source, error) {
		if c.Backend == config.BackendOpenCV {
			return opencv.Open(opt)
		}
		return capture.Open(opt)
	}
}
