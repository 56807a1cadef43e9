package log

import (
	"github.com/tryfix/log"
)

type Logger struct {
	verbose bool
	log.Logger
}

func NewLogger(verbose bool) *Logger {
	return &Logger{
		verbose: verbose,
		Logger: log.Constructor.Log(
			log.WithColors(true),
			log.WithLevel("TRACE"),
			log.WithFilePath(true),
			log.WithSkipFrameCount(4),
		),
	}
}

// Error is always emitted regardless of the verbose flag.
func (l *Logger) Error(message interface{}, params ...interface{}) {
	l.Logger.Error(message, params...)
}

func (l *Logger) Trace(message interface{}, params ...interface{}) {
	if l.verbose {
		l.Logger.Trace(message, params...)
	}
}

func (l *Logger) Debug(message interface{}, params ...interface{}) {
	if l.verbose {
		l.Logger.Debug(message, params...)
	}
}

func (l *Logger) Info(message interface{}, params ...interface{}) {
	if l.verbose {
		l.Logger.Info(message, params...)
	}
}
