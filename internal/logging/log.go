package logging

import "fmt"

func Tracef(format string, args ...any) {
	l := Logger()
	l.Trace().Msg(fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) {
	l := Logger()
	l.Debug().Msg(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...any) {
	l := Logger()
	l.Info().Msg(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	l := Logger()
	l.Warn().Msg(fmt.Sprintf(format, args...))
}

func Errf(format string, args ...any) {
	l := Logger()
	l.Error().Msg(fmt.Sprintf(format, args...))
}

// Logf writes regardless of the configured level.
func Logf(format string, args ...any) {
	l := Logger()
	l.Log().Msg(fmt.Sprintf(format, args...))
}
