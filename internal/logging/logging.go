// Package logging builds the process slog.Logger from LoggingConfig.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/iudanet/gophsync/internal/client/syncmetrics"
	"github.com/iudanet/gophsync/internal/config"
)

// Logger логгер вместе с ресурсами, которые нужно закрыть
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// Close flushes and closes the rotating file, if any
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// New creates a logger. Records go to the rotating file when cfg.File is
// set and to stderr otherwise. Warnings and errors are also teed into rec.
func New(cfg config.LoggingConfig, rec *syncmetrics.Recorder) (*Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var (
		out    io.Writer = os.Stderr
		closer io.Closer
	)
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out, closer = rotating, rotating
	}

	format, err := resolveFormat(cfg.Format, out)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	// в кольцевой буфер метрик попадают предупреждения и ошибки
	handler = syncmetrics.NewHandler(handler, rec, slog.LevelWarn)

	return &Logger{Logger: slog.New(handler), closer: closer}, nil
}

// resolveFormat maps auto to text for terminals and json for everything else
func resolveFormat(format string, out io.Writer) (string, error) {
	switch f := strings.ToLower(format); f {
	case "text", "json":
		return f, nil
	case "", "auto":
		if isTerminal(out) {
			return "text", nil
		}
		return "json", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
