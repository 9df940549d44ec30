package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	BackendV4L2   = "v4l2"
	BackendOpenCV = "opencv"
)

// DefaultPath is where Load looks when no config file is given.
const DefaultPath = "absensi.json"

type Config struct {
	Device   string `json:"device" yaml:"device"`
	Backend  string `json:"backend" yaml:"backend"`
	Width    int    `json:"width" yaml:"width"`
	Height   int    `json:"height" yaml:"height"`
	ModelDir string `json:"model_dir" yaml:"model_dir"`
	CNN      bool   `json:"cnn" yaml:"cnn"`

	Threshold  float64 `json:"threshold" yaml:"threshold"`
	IntervalMs int     `json:"interval_ms" yaml:"interval_ms"`

	GalleryDir     string `json:"gallery_dir" yaml:"gallery_dir"`
	AttendanceFile string `json:"attendance_file" yaml:"attendance_file"`
	Dedupe         bool   `json:"dedupe" yaml:"dedupe"`

	Socket   string `json:"socket" yaml:"socket"`
	PidFile  string `json:"pid_file" yaml:"pid_file"`
	LogFile  string `json:"log_file" yaml:"log_file"`
	LogLevel string `json:"log_level" yaml:"log_level"`
}

func defaults() *Config {
	return &Config{
		Device:         "0",
		Backend:        BackendV4L2,
		Width:          640,
		Height:         480,
		ModelDir:       "models",
		Threshold:      0.6,
		IntervalMs:     30,
		GalleryDir:     "registered_users",
		AttendanceFile: "attendance.csv",
		Dedupe:         true,
		PidFile:        filepath.Join(os.TempDir(), "absensi.pid"),
		LogFile:        "absensi.log",
		LogLevel:       "info",
	}
}

// Load reads the config file at path over the defaults, then applies the
// ABSENSI_* environment overrides. A missing or broken file is only
// warned about.
func Load(path string) *Config {
	if path == "" {
		path = DefaultPath
	}

	conf := defaults()
	if err := loadFromFile(path, conf); err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			slog.Debug("No config file", "path", path)
		} else {
			slog.Warn("Failed to load config file", "path", path, "error", err)
		}
	}
	conf.applyEnv()
	return conf
}

func loadFromFile(path string, conf *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// decode into a copy so a half-decoded file does not leak into conf
	parsed := *conf
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &parsed)
	default:
		err = json.Unmarshal(data, &parsed)
	}
	if err != nil {
		return errors.Wrapf(err, "can not parse %s", path)
	}

	*conf = parsed
	return nil
}

func (c *Config) applyEnv() {
	c.Device = envString("ABSENSI_DEVICE", c.Device)
	c.Backend = envString("ABSENSI_BACKEND", c.Backend)
	c.Threshold = envFloat("ABSENSI_THRESHOLD", c.Threshold)
	c.IntervalMs = envInt("ABSENSI_INTERVAL_MS", c.IntervalMs)
	c.GalleryDir = envString("ABSENSI_GALLERY_DIR", c.GalleryDir)
	c.AttendanceFile = envString("ABSENSI_ATTENDANCE_FILE", c.AttendanceFile)
	c.ModelDir = envString("ABSENSI_MODEL_DIR", c.ModelDir)
	c.Socket = envString("ABSENSI_SOCKET", c.Socket)
	c.LogLevel = envString("ABSENSI_LOG_LEVEL", c.LogLevel)
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads an environment variable as a positive integer, keeping
// defaultVal if it is unset or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	slog.Warn("Ignoring invalid environment value", "key", key, "value", s)
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	slog.Warn("Ignoring invalid environment value", "key", key, "value", s)
	return defaultVal
}

func (c *Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 2 {
		return errors.Errorf("threshold %v out of range (0, 2]", c.Threshold)
	}
	if c.IntervalMs <= 0 {
		return errors.Errorf("interval %dms must be positive", c.IntervalMs)
	}
	switch c.Backend {
	case BackendV4L2, BackendOpenCV:
	default:
		return errors.Errorf("unknown capture backend %q", c.Backend)
	}
	if c.Device == "" {
		return errors.New("device not set")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, errors.Wrapf(err, "invalid log level %q", c.LogLevel)
	}
	return level, nil
}
