package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestInitWithWriterRejectsNil(t *testing.T) {
	if err := InitWithWriter(nil); err == nil {
		t.Fatal("expected error for nil writer")
	}
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("init: %v", err)
	}

	ctx := context.Background()
	Named("sheets").Info(ctx, "fetched sheet",
		String("dataset", "flows"),
		Int("rows", 42),
		Duration("took", 150*time.Millisecond),
		Error(errors.New("boom")),
	)

	out := buf.String()
	for _, want := range []string{"fetched sheet", "component=sheets", "dataset=flows", "rows=42", "error=boom", "source="} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("init: %v", err)
	}
	Get().With(String("request_id", "abc")).Warn(context.Background(), "slow upstream")
	if !strings.Contains(buf.String(), "request_id=abc") {
		t.Errorf("expected bound field in output: %q", buf.String())
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("init: %v", err)
	}
	ctx := context.Background()

	Get().Debug(ctx, "hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatal("debug record written at info level")
	}

	if err := SetLevelString("DEBUG"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	Get().Debug(ctx, "visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatal("debug record missing after level change")
	}

	for _, lvl := range []string{"info", "warn", "warning", "error", ""} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("level %q rejected: %v", lvl, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
	_ = SetLevelString("info")
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info(context.Background(), "discarded", String("k", "v"))
	if l.Named("x") == nil {
		t.Fatal("named nop logger is nil")
	}
}
