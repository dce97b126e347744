// Package logger wires logrus for every component of the engine.
//
// All named loggers share one root *logrus.Logger, so package-level
// loggers obtained with Get before Init still pick up the final level,
// format and outputs.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var root = newRoot()

type Config struct {
	Level      string // debug, info, warn, error
	JSON       bool
	Dir        string // empty disables the rotating file sink
	Service    string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Service:    "engine",
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 14,
	}
}

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init applies cfg to the shared root logger.
func Init(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	root.SetLevel(level)

	if cfg.JSON {
		root.SetFormatter(&logrus.JSONFormatter{})
	} else {
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Dir == "" {
		root.SetOutput(os.Stderr)
		return nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return errors.Wrapf(err, "create log dir %s", cfg.Dir)
	}

	service := cfg.Service
	if service == "" {
		service = "engine"
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, service+".log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	root.SetOutput(io.MultiWriter(os.Stderr, file))
	return nil
}

// Get returns a logger tagged with the component name.
func Get(component string) *logrus.Entry {
	return root.WithField("component", component)
}

// SetOutput redirects the root logger, mostly for tests.
func SetOutput(w io.Writer) {
	root.SetOutput(w)
}
