package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Init configures slog for a service: text to stdout, teed into
// $LOG_DIR/<service>.log when LOG_DIR is set. The returned closer is the
// log file (nil without LOG_DIR). The stdlib log package writes to the
// same place so log.Fatalf at start-up is not lost.
func Init(service string) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: ParseLevel(os.Getenv("LOG_LEVEL"))}

	var out io.Writer = os.Stdout
	var closer io.Closer
	if dir := strings.TrimSpace(os.Getenv("LOG_DIR")); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
		f, err := os.OpenFile(filepath.Join(dir, service+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			lg := slog.New(slog.NewTextHandler(os.Stdout, opts))
			lg.Error("failed to open log file; falling back to stdout only", "error", err)
		} else {
			out = io.MultiWriter(f, os.Stdout)
			closer = f
		}
	}

	logger := slog.New(slog.NewTextHandler(out, opts)).With("service", service)
	slog.SetDefault(logger)
	log.SetOutput(out)
	return logger, closer
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
