package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bbarnes4318/hoppy/internal/types"
)

type Logger struct {
	*logrus.Entry
}

type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Output io.Writer
}

func New(opts Options) *Logger {
	base := logrus.New()

	// text = pretty console; anything else = JSON
	switch strings.ToLower(opts.Format) {
	case "", "text", "console", "local":
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			ForceColors:     opts.Output == nil,
		})
	default:
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	if opts.Output != nil {
		base.SetOutput(opts.Output)
	} else {
		base.SetOutput(os.Stdout)
	}

	switch strings.ToLower(opts.Level) {
	case "debug":
		base.SetLevel(logrus.DebugLevel)
	case "warn":
		base.SetLevel(logrus.WarnLevel)
	case "error":
		base.SetLevel(logrus.ErrorLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}

	return &Logger{Entry: logrus.NewEntry(base)}
}

// Discard returns a logger that writes nowhere. Used by tests and by
// components constructed without a logger.
func Discard() *Logger {
	return New(Options{Output: io.Discard})
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", name)}
}

// WithItem attaches source item metadata and a fresh item id.
func (l *Logger) WithItem(item types.SourceItem) *Logger {
	return &Logger{Entry: l.WithFields(logrus.Fields{
		"item_id":    uuid.New().String(),
		"item_index": item.Index,
		"locator":    item.Locator,
		"kind":       string(item.Kind),
	})}
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}
