package utils

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

const serviceName = "pigeon-bidding"

var logger = log.New()

// init installs the JSON formatter on stdout at info level
func init() {
	logger.SetFormatter(jsonFormatter())
	logger.SetOutput(os.Stdout)
	logger.SetLevel(log.InfoLevel)
}

func jsonFormatter() log.Formatter {
	return &log.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00", // ISO 8601
		FieldMap:        log.FieldMap{log.FieldKeyMsg: "message"},
	}
}

// Configure applies the level and format (json or text) from configuration
func Configure(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	switch format {
	case "", "json":
		logger.SetFormatter(jsonFormatter())
	case "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	logger.SetLevel(lvl)
	return nil
}

// SetOutput redirects log output
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func entry(fields map[string]any) *log.Entry {
	return logger.WithField("service", serviceName).WithFields(fields)
}

// Debug logs a message at debug level with optional fields
func Debug(message string, fields map[string]any) {
	entry(fields).Debug(message)
}

// Info logs a message at info level with optional fields
func Info(message string, fields map[string]any) {
	entry(fields).Info(message)
}

// Warn logs a message at warning level with optional fields
func Warn(message string, fields map[string]any) {
	entry(fields).Warn(message)
}

// Error logs a message at error level with optional fields
func Error(message string, fields map[string]any) {
	entry(fields).Error(message)
}

// Fatal logs a message at fatal level and exits the application
func Fatal(message string, fields map[string]any) {
	entry(fields).Fatal(message)
}
