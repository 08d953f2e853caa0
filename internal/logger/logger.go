package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger settings.
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json or text
	Output     string `yaml:"output" json:"output"` // stdout, stderr, file
	Filename   string `yaml:"filename" json:"filename"`
	MaxSize    int    `yaml:"max_size" json:"max_size"` // MB
	MaxAge     int    `yaml:"max_age" json:"max_age"`   // days
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig is used before Init is called.
var DefaultConfig = Config{
	Level:      "info",
	Format:     "json",
	Output:     "stdout",
	MaxSize:    100,
	MaxAge:     30,
	MaxBackups: 10,
	Compress:   true,
}

var global = newLogger(DefaultConfig)

func newLogger(config Config) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if config.Format == "text" {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	}

	var output io.Writer
	switch config.Output {
	case "stderr":
		output = os.Stderr
	case "file":
		if config.Filename == "" {
			config.Filename = "logs/app.log"
		}
		if err := os.MkdirAll(filepath.Dir(config.Filename), 0o755); err != nil {
			fmt.Printf("Failed to create log directory: %v\n", err)
			output = os.Stdout
		} else {
			output = &lumberjack.Logger{
				Filename:   config.Filename,
				MaxSize:    config.MaxSize,
				MaxAge:     config.MaxAge,
				MaxBackups: config.MaxBackups,
				Compress:   config.Compress,
			}
		}
	default:
		output = os.Stdout
	}
	l.SetOutput(output)

	return l
}

// Init replaces the global logger with one built from config.
func Init(config Config) {
	global = newLogger(config)
}

// L returns the global logger.
func L() *logrus.Logger {
	return global
}

// WithField returns an entry with a single field attached.
func WithField(key string, value interface{}) *logrus.Entry {
	return global.WithField(key, value)
}

// WithFields returns an entry with the given fields attached.
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return global.WithFields(fields)
}

// WithError returns an entry with the error attached.
func WithError(err error) *logrus.Entry {
	return global.WithError(err)
}

func Debug(args ...interface{}) { global.Debug(args...) }
func Info(args ...interface{})  { global.Info(args...) }
func Warn(args ...interface{})  { global.Warn(args...) }
func Error(args ...interface{}) { global.Error(args...) }
func Fatal(args ...interface{}) { global.Fatal(args...) }

func Debugf(format string, args ...interface{}) { global.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { global.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { global.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { global.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { global.Fatalf(format, args...) }

// LogHTTPRequest logs a completed HTTP request at a level derived from
// the response status.
func LogHTTPRequest(method, path string, statusCode int, latency time.Duration, clientIP string) {
	entry := global.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"latency":     latency.String(),
		"client_ip":   clientIP,
	})

	msg := fmt.Sprintf("%s %s - %d", method, path, statusCode)
	switch {
	case statusCode >= 500:
		entry.Error(msg)
	case statusCode >= 400:
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
}
