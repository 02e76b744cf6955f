package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aicha-kelia/drama-aggregator/pkg/utils"
)

// New builds the process logger. When cfg.File is set, output goes to both
// stdout and a size-rotated file.
func New(cfg utils.LogConfig) (*logrus.Logger, error) {
	return NewWithOutput(cfg, os.Stdout)
}

// NewWithOutput is New with console output sent to w instead of stdout.
func NewWithOutput(cfg utils.LogConfig, w io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out := w
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(w, fileWriter)
	}
	logger.SetOutput(out)

	return logger, nil
}

// Discard returns a logger that drops everything. Handy for tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
