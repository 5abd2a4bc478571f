package shared

import (
	"context"
	"log/slog"
)

// NotifyKind classifies a user-facing notification.
type NotifyKind string

const (
	NotifySuccess NotifyKind = "success"
	NotifyError   NotifyKind = "error"
	NotifyInfo    NotifyKind = "info"
	NotifyWarning NotifyKind = "warning"
)

// Notifier surfaces user-facing messages. The domain layer never renders
// notifications itself; the caller decides how they reach the user.
type Notifier interface {
	Notify(ctx context.Context, message string, kind NotifyKind)
}

// LogNotifier writes notifications to the structured log. Used as the
// default sink when no UI channel is attached.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, message string, kind NotifyKind) {
	if n.Logger == nil {
		return
	}
	n.Logger.InfoContext(ctx, "notify", slog.String("kind", string(kind)), slog.String("message", message))
}
