package logging

import (
	"log"
	"os"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var current Level = LevelInfo

// InitFromEnv sets the log level based on LOG_LEVEL (debug|info|warn|error).
func InitFromEnv() {
	SetLevel(ParseLevel(os.Getenv("LOG_LEVEL")))
}

// ParseLevel maps a level name to a Level; unknown names fall back to info.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// KnownLevel reports whether name is a level ParseLevel understands. An empty
// name is accepted and means info.
func KnownLevel(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func SetLevel(l Level) {
	current = l
}

func Enabled(l Level) bool {
	return current <= l
}

func Debugf(format string, args ...interface{}) {
	if current <= LevelDebug {
		log.Printf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if current <= LevelInfo {
		log.Printf(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if current <= LevelWarn {
		log.Printf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	log.Fatalf(format, args...)
}
