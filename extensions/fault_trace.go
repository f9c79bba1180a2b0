package extensions

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	active "github.com/epiforge/active"
)

// FaultTraceExtension logs the computation tree whenever a node faults, so
// the origin of a propagated fault is visible without manual traversal.
//
// Usage:
//
//	// Human-readable formatted output (with line breaks)
//	handler := extensions.NewHumanHandler(os.Stdout, slog.LevelWarn)
//	ext := extensions.NewFaultTraceExtension(handler)
//
//	// Structured JSON logging (compact, machine-readable)
//	ext := extensions.NewFaultTraceExtension(slog.NewJSONHandler(os.Stdout, nil))
//
//	// Silent (for testing)
//	ext := extensions.NewFaultTraceExtension(extensions.NewSilentHandler())
type FaultTraceExtension struct {
	active.BaseExtension
	logger *slog.Logger
}

// NewFaultTraceExtension creates a new fault trace extension
func NewFaultTraceExtension(logHandler slog.Handler) *FaultTraceExtension {
	return &FaultTraceExtension{
		BaseExtension: active.NewBaseExtension("fault-trace"),
		logger:        slog.New(logHandler),
	}
}

func (e *FaultTraceExtension) OnNodeFault(n *active.Node, fault error) {
	e.logger.Warn("Node Fault",
		"node", n.String(),
		"fault", fault.Error(),
		"tree", active.RenderTree(n),
	)
}

// HumanHandler is a slog.Handler that formats logs for human readability
// with proper line breaks, keeping any rendered tree attribute intact
type HumanHandler struct {
	writer io.Writer
	level  slog.Level
}

// NewHumanHandler creates a new human-readable log handler
func NewHumanHandler(writer io.Writer, level slog.Level) *HumanHandler {
	return &HumanHandler{writer: writer, level: level}
}

func (h *HumanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *HumanHandler) Handle(ctx context.Context, record slog.Record) error {
	if _, err := fmt.Fprintf(h.writer, "[%s] %s\n", record.Level, record.Message); err != nil {
		return err
	}
	var outer error
	record.Attrs(func(a slog.Attr) bool {
		if a.Key == "tree" {
			_, outer = fmt.Fprintf(h.writer, "%s\n", a.Value.String())
		} else {
			_, outer = fmt.Fprintf(h.writer, "  %s: %s\n", a.Key, a.Value.String())
		}
		return outer == nil
	})
	return outer
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *HumanHandler) WithGroup(name string) slog.Handler {
	return h
}
