package logging

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

var current atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.Nop()
	current.Store(&l)
}

func setLogger(l zerolog.Logger) {
	current.Store(&l)
}

// Logger returns the configured logger. It discards output until Configure or Apply runs.
func Logger() zerolog.Logger {
	return *current.Load()
}

func Debugf(format string, args ...any) {
	l := current.Load()
	l.Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	l := current.Load()
	l.Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	l := current.Load()
	l.Warn().Msgf(format, args...)
}

func Errf(format string, args ...any) {
	l := current.Load()
	l.Error().Msgf(format, args...)
}

// Logf emits at no level so test narration is never filtered out.
func Logf(format string, args ...any) {
	l := current.Load()
	l.Log().Msgf(format, args...)
}
