package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes simulation events to an slog.Logger.
// Error events are logged at Warn level, everything else at Info.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("category", event.Category.String()),
	}

	if event.Sensor != nil {
		attrs = append(attrs,
			slog.String("sensor", event.Sensor.Category),
			slog.Uint64("sensor_id", uint64(event.Sensor.Instance)),
		)
	}
	if event.ECU != nil {
		attrs = append(attrs,
			slog.Uint64("ecu_id", uint64(event.ECU.ID)),
			slog.String("ecu", event.ECU.Name),
		)
	}
	if event.Value != nil {
		attrs = append(attrs, slog.Float64("value", *event.Value))
	}
	if event.Status != "" {
		attrs = append(attrs, slog.String("status", event.Status))
	}
	if event.Live != nil {
		attrs = append(attrs, slog.Int("live", *event.Live))
	}

	level := slog.LevelInfo
	if event.Category == CategoryError {
		level = slog.LevelWarn
	}

	a.logger.LogAttrs(context.Background(), level, event.Message, attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
