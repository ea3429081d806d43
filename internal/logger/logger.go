package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// New builds a logrus logger with the timestamp format used across the service.
func New(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger
}

// OrDefault returns l, or a fresh info-level logger when l is nil.
func OrDefault(l *logrus.Logger) *logrus.Logger {
	if l != nil {
		return l
	}
	return New("info")
}

// Discard is a logger for tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
