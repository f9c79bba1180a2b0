package extensions

import (
	"context"
	"log/slog"

	active "github.com/epiforge/active"
)

// LoggingExtension logs node lifecycle events.
//
// Usage:
//
//	// Structured JSON logging
//	ext := extensions.NewLoggingExtension(slog.NewJSONHandler(os.Stdout, nil))
//
//	// Silent (for testing)
//	ext := extensions.NewLoggingExtension(extensions.NewSilentHandler())
type LoggingExtension struct {
	active.BaseExtension
	logger *slog.Logger
}

// NewLoggingExtension creates a new logging extension over the given handler
func NewLoggingExtension(logHandler slog.Handler) *LoggingExtension {
	return &LoggingExtension{
		BaseExtension: active.NewBaseExtension("logging"),
		logger:        slog.New(logHandler),
	}
}

func (e *LoggingExtension) OnNodeCreated(n *active.Node) {
	e.logger.Debug("node created",
		"kind", string(n.Kind()),
		"node", n.String(),
	)
}

func (e *LoggingExtension) OnNodeInitialized(n *active.Node, err error) {
	if err != nil {
		e.logger.Error("node initialization failed",
			"kind", string(n.Kind()),
			"node", n.String(),
			"error", err.Error(),
		)
		return
	}
	e.logger.Debug("node initialized",
		"kind", string(n.Kind()),
		"node", n.String(),
	)
}

func (e *LoggingExtension) OnNodeFault(n *active.Node, fault error) {
	e.logger.Warn("node faulted",
		"kind", string(n.Kind()),
		"node", n.String(),
		"fault", fault.Error(),
	)
}

func (e *LoggingExtension) OnNodeDisposed(n *active.Node) {
	e.logger.Debug("node disposed",
		"kind", string(n.Kind()),
		"node", n.String(),
	)
}

func (e *LoggingExtension) OnCleanupError(err *active.CleanupError) bool {
	e.logger.Error("cleanup failed",
		"context", err.Context,
		"error", err.Err.Error(),
	)
	return false
}

// SilentHandler is a slog.Handler that discards all log output
// Useful for testing when you don't want log output
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h
}
