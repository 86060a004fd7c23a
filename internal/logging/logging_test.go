// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: LevelDebug, JSON: true})
	l.Info("hello", "sid", 1)

	out := buf.String()
	if !strings.Contains(out, `"sid":1`) {
		t.Errorf("expected sid attribute in JSON output, got %q", out)
	}
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Errorf("expected msg in JSON output, got %q", out)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: LevelInfo, JSON: true}).WithComponent("decode")
	l.Warn("truncated packet")

	if !strings.Contains(buf.String(), `"component":"decode"`) {
		t.Errorf("expected component attribute, got %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: LevelWarn, JSON: false})
	l.Debug("should not appear")
	l.Info("should not appear either")
	if buf.Len() != 0 {
		t.Errorf("expected no output below configured level, got %q", buf.String())
	}
	l.Warn("should appear")
	if buf.Len() == 0 {
		t.Error("expected output at configured level")
	}
}

func TestDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(New(Config{Output: &buf, Level: LevelInfo}))
	Default().Info("via default")
	if !strings.Contains(buf.String(), "via default") {
		t.Errorf("expected message via default logger, got %q", buf.String())
	}
}
