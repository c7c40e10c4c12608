package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"none":  LogLevelNone,
		"ERROR": LogLevelError,
		"warn":  LogLevelWarning,
		"info":  LogLevelInfo,
		"debug": LogLevelDebug,
		"0":     LogLevelNone,
		"4":     LogLevelDebug,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseLevel("7"); err == nil {
		t.Error("Expected error for out of range level")
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("Expected error for unknown level name")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(log.New(&buf, "", 0), LogLevelWarning)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("Expected debug and info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "WARN: warn 3") {
		t.Errorf("Expected warning line, got %q", out)
	}
	if !strings.Contains(out, "ERROR: error 4") {
		t.Errorf("Expected error line, got %q", out)
	}
}

func TestWithTag(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(log.New(&buf, "", 0), LogLevelInfo).WithTag("drive")

	l.Infof("released")
	l.Errorf("motor failed")

	out := buf.String()
	if !strings.Contains(out, "[drive] released") {
		t.Errorf("Expected tagged info line, got %q", out)
	}
	if !strings.Contains(out, "[drive] ERROR: motor failed") {
		t.Errorf("Expected tagged error line, got %q", out)
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	l := NewLogger(nil, LogLevelDebug)
	l.Debugf("nothing to see")
	l.Errorf("still nothing")
}
