package shared

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestGenerateID(t *testing.T) {
	first := GenerateID()
	second := GenerateID()

	if first == "" || second == "" {
		t.Fatal("expected non-empty ids")
	}
	if first == second {
		t.Errorf("expected unique ids, got %s twice", first)
	}
	if len(first) != 36 {
		t.Errorf("expected uuid-shaped id, got %s", first)
	}
}

func TestMarshalJSON(t *testing.T) {
	t.Run("compact", func(t *testing.T) {
		out, err := MarshalJSON(map[string]int{"count": 3}, false)
		if err != nil {
			t.Fatalf("MarshalJSON failed: %v", err)
		}
		if string(out) != `{"count":3}` {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("pretty", func(t *testing.T) {
		out, err := MarshalJSON(map[string]int{"count": 3}, true)
		if err != nil {
			t.Fatalf("MarshalJSON failed: %v", err)
		}
		if !strings.Contains(string(out), "  \"count\": 3") {
			t.Errorf("expected indented output, got: %s", out)
		}
	})

	t.Run("unmarshalable value", func(t *testing.T) {
		if _, err := MarshalJSON(make(chan int), false); err == nil {
			t.Error("expected error for channel value")
		}
	})
}

func TestLogger(t *testing.T) {
	t.Run("writes to the given writer", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewLogger(buf)
		logger.Info("hello")

		if !strings.Contains(buf.String(), "hello") {
			t.Errorf("expected log output, got: %q", buf.String())
		}
	})

	t.Run("nil writer defaults without panicking", func(t *testing.T) {
		logger := NewLogger(nil)
		if logger == nil {
			t.Fatal("expected a logger")
		}
	})

	t.Run("WithLogger carries key-values", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := WithLogger(NewLogger(buf), "job", "abc")
		logger.Info("running")

		if !strings.Contains(buf.String(), "job") {
			t.Errorf("expected job key in output, got: %q", buf.String())
		}
	})

	t.Run("SetLogLevel filters lower levels", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewLogger(buf)
		SetLogLevel(logger, log.ErrorLevel)
		logger.Info("quiet")

		if strings.Contains(buf.String(), "quiet") {
			t.Errorf("expected info to be filtered, got: %q", buf.String())
		}
	})
}
