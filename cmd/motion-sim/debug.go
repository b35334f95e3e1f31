package main

import (
	"io"
	"log"
	"os"
)

// Log levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Setup and the final report
	LevelLive    = 2 // Every submitted move
	LevelVerbose = 3 // Segment generator events
)

var (
	level  int
	logger *log.Logger
)

// initLog sets the level. Output goes to w, or stderr when w is nil, so the
// report on stdout stays clean.
func initLog(lvl int, w io.Writer) {
	level = lvl
	if w == nil {
		w = os.Stderr
	}
	if level > LevelOff {
		logger = log.New(w, "[motion-sim] ", log.LstdFlags|log.Lmicroseconds)
	}
}

func logInfo(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] "+format, args...)
	}
}

func logLive(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] "+format, args...)
	}
}

func logVerbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] "+format, args...)
	}
}

// logError prints err at any level above off
func logError(err error) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[ERROR] %v", err)
	}
}

// timingWriter forwards the core timing dump to the verbose log
func timingWriter(s string) {
	logVerbose("%s", s)
}
