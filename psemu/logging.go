package main

import (
	"fmt"
	"io"

	"github.com/itohio/psemu/pkg/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// newLogger builds the process logger. With a file path set, entries go to
// both console and a rotated log file; the returned closer releases it.
func newLogger(cfg config.LogConfig, console io.Writer) (*logrus.Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	log := logrus.New()
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, nil, fmt.Errorf("invalid log format %q: expected text or json", cfg.Format)
	}

	if cfg.FilePath == "" {
		log.SetOutput(console)
		return log, closerFunc(func() error { return nil }), nil
	}

	file := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	log.SetOutput(io.MultiWriter(console, file))
	return log, file, nil
}
