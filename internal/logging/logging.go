// Package logging holds the process wide zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

var consoleWriter = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

// L is the logger used across the explorer. Fields are chained per call site.
var L = newLogger(consoleWriter)

var logFile *os.File

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

func SetLogLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config string onto a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLogOutput writes JSON logs to dir/fileName. Console output is kept when
// toConsole is set. Call once during startup before goroutines use L.
func SetLogOutput(dir, fileName string, toConsole bool) error {
	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, fileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return err
	}
	logFile = f

	if toConsole {
		L = newLogger(zerolog.MultiLevelWriter(consoleWriter, f))
	} else {
		L = newLogger(f)
	}
	return nil
}

func Close() {
	if logFile == nil {
		return
	}
	_ = logFile.Close()
	logFile = nil
}
