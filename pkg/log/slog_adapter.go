package log

import (
	"context"
	"log/slog"
)

// SlogAdapter mirrors the protocol capture into the operational log. Frames
// and messages go out at Debug, errors at Warn.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter returns an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger.With("component", "protocol")}
}

// Log writes one event.
func (a *SlogAdapter) Log(event Event) {
	level := slog.LevelDebug
	attrs := make([]slog.Attr, 0, 6)
	attrs = append(attrs,
		slog.String("session", shortID(event.SessionID)),
		slog.String("dir", event.Direction.String()),
		slog.String("category", event.Category.String()),
	)

	msg := event.Layer.String()
	switch {
	case event.Frame != nil:
		attrs = append(attrs, slog.Int("size", event.Frame.Size))
	case event.Message != nil:
		msg = event.Message.Name
	case event.StateChange != nil:
		sc := event.StateChange
		msg = sc.Entity.String() + " " + sc.OldState + " -> " + sc.NewState
		if sc.Name != "" {
			attrs = append(attrs, slog.String("name", sc.Name))
		}
		if sc.Reason != "" {
			attrs = append(attrs, slog.String("reason", sc.Reason))
		}
	case event.Error != nil:
		level = slog.LevelWarn
		msg = event.Error.Message
		attrs = append(attrs, slog.String("layer", event.Error.Layer.String()))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var _ Logger = (*SlogAdapter)(nil)
