package identity

import (
	"context"
)

// NotificationKind names the message templates the lifecycle emits
type NotificationKind string

const (
	NotificationEmailVerification NotificationKind = "email_verification"
	NotificationWelcomeMessage    NotificationKind = "welcome_message"
	NotificationPasswordReset     NotificationKind = "password_reset"
	NotificationPasswordResetOK   NotificationKind = "password_reset_success"
)

// Notification is the fire and forget payload handed to the Notifier
type Notification struct {
	Kind     NotificationKind
	To       string
	Subject  string
	Code     string
	Username string
	Link     string
}

// Notifier delivers lifecycle email. Delivery failures are never fatal to
// the operation that triggered them, handlers log and move on.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

type noopNotifier struct{}

func (noopNotifier) Send(context.Context, Notification) error { return nil }

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// LogNotifier writes notifications to the logger instead of delivering
// them. Meant for development and examples.
type LogNotifier struct {
	logger Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger Logger) *LogNotifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Send(_ context.Context, n Notification) error {
	l.logger.Info(
		"sending email notification",
		"kind", string(n.Kind),
		"to", n.To,
		"subject", n.Subject,
		"code", n.Code,
		"link", n.Link,
	)
	return nil
}

func defaultSubject(kind NotificationKind) string {
	switch kind {
	case NotificationEmailVerification:
		return "Verify your email"
	case NotificationWelcomeMessage:
		return "Welcome aboard"
	case NotificationPasswordReset:
		return "Reset your password"
	case NotificationPasswordResetOK:
		return "Your password was changed"
	default:
		return ""
	}
}
