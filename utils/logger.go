package utils

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogger создает логгер с заданным уровнем и форматом (json или text)
func NewLogger(level, format string) *logrus.Logger {
	return NewLoggerWithOutput(level, format, os.Stdout)
}

// NewLoggerWithOutput создает логгер, пишущий в указанный writer
func NewLoggerWithOutput(level, format string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	if strings.EqualFold(format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	return logger
}

// LogOperation логирует результат операции и ее длительность
func LogOperation(logger logrus.FieldLogger, operation string, startTime time.Time, err error) {
	entry := logger.WithFields(logrus.Fields{
		"operation": operation,
		"duration":  time.Since(startTime).String(),
	})
	if err != nil {
		entry.WithError(err).Error("operation failed")
		return
	}
	entry.Debug("operation completed")
}
