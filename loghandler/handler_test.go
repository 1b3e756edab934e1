package loghandler

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestCompactHandlerTagAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, slog.LevelInfo))

	log.Info("match created", "tag", "registry", "match", "m-1")

	line := buf.String()
	if !strings.Contains(line, " [registry] match created match=m-1\n") {
		t.Errorf("unexpected line %q", line)
	}
	if strings.Contains(line, "tag=") {
		t.Errorf("tag must not be repeated as key=value: %q", line)
	}
	if strings.Contains(line, "INFO") {
		t.Errorf("info records carry no level: %q", line)
	}
}

func TestCompactHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, slog.LevelInfo))

	log.Debug("hidden")
	log.Warn("careful", "tag", "storage")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record should be filtered: %q", out)
	}
	if !strings.Contains(out, " WARN [storage] careful") {
		t.Errorf("expected WARN prefix, got %q", out)
	}
}

func TestCompactHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, slog.LevelInfo)).With("tag", "ws", "client", 7)

	log.WithGroup("play").Info("card played", "x", 1, "y", 2)

	line := buf.String()
	if !strings.Contains(line, "[ws] card played client=7 play.x=1 play.y=2") {
		t.Errorf("unexpected line %q", line)
	}
}
