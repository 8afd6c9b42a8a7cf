package internal

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the process logger. When a log file is configured the
// output is tee'd into it with size-based rotation. The returned func
// closes the file.
func newLogger(cfg ApplicationConfig, out io.Writer) (*slog.Logger, func() error) {
	closeFn := func() error { return nil }
	if cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		out = io.MultiWriter(out, file)
		closeFn = file.Close
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler
	if cfg.LogFormat == LogFormatText {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}
	return slog.New(h), closeFn
}
