package extensions

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	active "github.com/epiforge/active"
)

func TestLoggingExtensionObservesLifecycle(t *testing.T) {
	var buf bytes.Buffer
	ext := NewLoggingExtension(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if err := active.UseExtension(ext); err != nil {
		t.Fatalf("UseExtension: %v", err)
	}
	defer active.RemoveExtension(ext)

	n, err := active.Create(active.Binary(active.OpAdd, active.Constant(1), active.Constant(2)), active.NewOptions(), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	n.Dispose()

	output := buf.String()
	for _, want := range []string{"node created", "node initialized", "node disposed"} {
		if !strings.Contains(output, want) {
			t.Errorf("log output missing %q:\n%s", want, output)
		}
	}
}

func TestFaultTraceExtensionRendersTreeOnFault(t *testing.T) {
	var buf bytes.Buffer
	ext := NewFaultTraceExtension(NewHumanHandler(&buf, slog.LevelWarn))
	if err := active.UseExtension(ext); err != nil {
		t.Fatalf("UseExtension: %v", err)
	}
	defer active.RemoveExtension(ext)

	n, err := active.Create(
		active.Binary(active.OpDivide, active.Constant(1), active.Constant(0)),
		active.NewOptions(), false,
	)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	if n.Fault() == nil {
		t.Fatalf("expected a division fault")
	}
	output := buf.String()
	if !strings.Contains(output, "Node Fault") {
		t.Errorf("output missing fault header:\n%s", output)
	}
	if !strings.Contains(output, "division by zero") {
		t.Errorf("output missing fault text:\n%s", output)
	}
}

func TestSilentHandlerDiscardsEverything(t *testing.T) {
	var buf bytes.Buffer
	ext := NewLoggingExtension(NewSilentHandler())
	if err := active.UseExtension(ext); err != nil {
		t.Fatalf("UseExtension: %v", err)
	}
	defer active.RemoveExtension(ext)

	n, err := active.Create(active.Constant("quiet"), active.NewOptions(), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	n.Dispose()

	if buf.Len() != 0 {
		t.Errorf("silent handler produced output: %q", buf.String())
	}
}
