package main

import (
	"log/slog"
	"os"

	"github.com/abihf/absensi/config"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	conf       *config.Config
	configPath string
	flags      config.Config
)

var rootCmd = &cobra.Command{
	Use:   "absensi",
	Short: "Face recognition attendance terminal",
	Long: `Absensi watches a camera, recognizes registered faces and writes an
attendance record for each of them.

Type a name and press enter to register the face in front of the camera,
ctrl+s starts taking attendance.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		conf = config.Load(configPath)
		applyFlags(cmd, conf)
		if err := conf.Validate(); err != nil {
			return errors.Wrap(err, "invalid configuration")
		}
		return nil
	},
	RunE: runTerminal,
}

func init() {
	cobra.OnInitialize(initEnv)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", config.DefaultPath, "config file (.json or .yaml)")
	pf.StringVarP(&flags.Device, "device", "d", "", "camera index or device path")
	pf.StringVar(&flags.Backend, "backend", "", "capture backend: v4l2 or opencv")
	pf.StringVar(&flags.GalleryDir, "gallery", "", "directory of registered faces")
	pf.StringVar(&flags.AttendanceFile, "attendance", "", "attendance CSV file")
	pf.StringVar(&flags.ModelDir, "models", "", "directory of dlib models")
	pf.Float64Var(&flags.Threshold, "threshold", 0, "largest face distance accepted as a match")
	pf.IntVar(&flags.IntervalMs, "interval", 0, "milliseconds between frames")
	pf.BoolVar(&flags.CNN, "cnn", false, "use the CNN face detector")
}

func initEnv() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func applyFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("device") {
		c.Device = flags.Device
	}
	if f.Changed("backend") {
		c.Backend = flags.Backend
	}
	if f.Changed("gallery") {
		c.GalleryDir = flags.GalleryDir
	}
	if f.Changed("attendance") {
		c.AttendanceFile = flags.AttendanceFile
	}
	if f.Changed("models") {
		c.ModelDir = flags.ModelDir
	}
	if f.Changed("threshold") {
		c.Threshold = flags.Threshold
	}
	if f.Changed("interval") {
		c.IntervalMs = flags.IntervalMs
	}
	if f.Changed("cnn") {
		c.CNN = flags.CNN
	}
}

// logToFile sends the default logger to the configured log file, leaving
// the terminal to the UI.
func logToFile(c *config.Config) (*os.File, error) {
	level, err := c.Level()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(c.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "can not open log file %s", c.LogFile)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	return f, nil
}

func logToStderr(c *config.Config) {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
