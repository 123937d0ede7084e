package logger

import (
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/buildopt/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger = corelogger.Nop

var level atomic.Int32

func init() { level.Store(int32(zerolog.InfoLevel)) }

// SetLevel sets the minimum level of loggers created afterwards. Unknown
// names leave the level unchanged and return false.
func SetLevel(name string) bool {
	l, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil || name == "" {
		return false
	}
	level.Store(int32(l))
	return true
}

// New returns a Logger tagged with component. APP_ENV=dev switches to
// human-readable console output.
func New(component string) Logger {
	return NewZerologLogger(component)
}

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a ZerologLogger writing to stdout.
func NewZerologLogger(component string) *ZerologLogger {
	var out zerolog.Logger
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		out = zerolog.New(os.Stdout)
	}
	z := out.Level(zerolog.Level(level.Load())).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
