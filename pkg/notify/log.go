package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes events using structured logging.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a new log notifier.
// If logger is nil, a default logger is used.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify writes the event using structured logging.
func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	attrs := []any{
		slog.String("event", event.Type),
		slog.String("run_id", event.RunID),
		slog.String("action", event.Action),
		slog.String("instance_type", event.InstanceType),
	}
	if event.InstanceID != "" {
		attrs = append(attrs, slog.String("instance_id", event.InstanceID))
	}
	if event.IP != "" {
		attrs = append(attrs, slog.String("ip", event.IP))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	n.logger.InfoContext(ctx, "runner lifecycle finished", attrs...)
	return nil
}
