package config

import (
	"bytes"
	"io"
	"log"
	"os"
	"strings"

	gommonlog "github.com/labstack/gommon/log"
)

// Level is a log severity. Standard logger lines carry it as a "DEBUG:",
// "WARN:", "ERROR:" or "FATAL:" prefix; unprefixed lines are info.
type Level int

// Log levels, lowest first.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel reads LOG_LEVEL values. Unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return LevelInfo
}

// Echo returns the matching echo logger level.
func (l Level) Echo() gommonlog.Lvl {
	switch l {
	case LevelDebug:
		return gommonlog.DEBUG
	case LevelWarn:
		return gommonlog.WARN
	case LevelError:
		return gommonlog.ERROR
	}
	return gommonlog.INFO
}

// SetupLogging drops standard logger lines below level.
func SetupLogging(level Level) {
	log.SetOutput(NewLevelWriter(os.Stderr, level))
}

// NewLevelWriter filters log lines written to out by their level prefix.
func NewLevelWriter(out io.Writer, min Level) io.Writer {
	return &levelWriter{out: out, min: min}
}

type levelWriter struct {
	out io.Writer
	min Level
}

func (w *levelWriter) Write(p []byte) (int, error) {
	if lineLevel(p) < w.min {
		return len(p), nil
	}
	return w.out.Write(p)
}

func lineLevel(p []byte) Level {
	switch {
	case bytes.Contains(p, []byte("FATAL:")), bytes.Contains(p, []byte("ERROR:")):
		return LevelError
	case bytes.Contains(p, []byte("WARN:")):
		return LevelWarn
	case bytes.Contains(p, []byte("DEBUG:")):
		return LevelDebug
	}
	return LevelInfo
}
