package log

import (
	"context"
	"encoding/hex"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger.
// Useful for development when you want to see I/O activity in the console.
type SlogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given
// slog.Logger at Debug level.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger, level: slog.LevelDebug}
}

// WithLevel returns a copy of the adapter logging at level.
func (a *SlogAdapter) WithLevel(level slog.Level) *SlogAdapter {
	return &SlogAdapter{logger: a.logger, level: level}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("conn_id", event.ConnectionID))
	}
	if event.AssemblyID != 0 {
		attrs = append(attrs, slog.Uint64("assembly", uint64(event.AssemblyID)))
	}

	switch {
	case event.Data != nil:
		attrs = append(attrs,
			slog.Int("size", event.Data.Size),
			slog.String("data", hex.EncodeToString(event.Data.Data)),
		)
		if event.Direction == DirectionOut {
			attrs = append(attrs, slog.Bool("fresh", event.Data.Fresh))
		}
		if event.Data.Truncated {
			attrs = append(attrs, slog.Bool("truncated", true))
		}
	case event.Connection != nil:
		attrs = append(attrs,
			slog.String("event", event.Connection.Event),
			slog.Uint64("output", uint64(event.Connection.OutputID)),
			slog.Uint64("input", uint64(event.Connection.InputID)),
		)
		if event.Connection.Role != "" {
			attrs = append(attrs, slog.String("role", event.Connection.Role))
		}
		if event.Connection.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Connection.Reason))
		}
	case event.Attribute != nil:
		attrs = append(attrs,
			slog.Uint64("class", uint64(event.Attribute.Class)),
			slog.Uint64("instance", uint64(event.Attribute.Instance)),
			slog.Uint64("attribute", uint64(event.Attribute.Attribute)),
			slog.Uint64("service", uint64(event.Attribute.Service)),
			slog.Uint64("status", uint64(event.Attribute.Status)),
		)
	case event.Reset != nil:
		attrs = append(attrs,
			slog.Uint64("reset_type", uint64(event.Reset.Type)),
			slog.Int("closed", event.Reset.ClosedConnections),
		)
	case event.Failsafe != nil:
		attrs = append(attrs,
			slog.String("old_state", event.Failsafe.OldState),
			slog.String("new_state", event.Failsafe.NewState),
		)
		if event.Failsafe.Policy != "" {
			attrs = append(attrs, slog.String("policy", event.Failsafe.Policy))
		}
	case event.RunIdle != nil:
		attrs = append(attrs, slog.Bool("run", event.RunIdle.Run))
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), a.level, "trace", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
