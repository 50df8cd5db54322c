package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clustermon/cluster-email-alerts/internal/notify/provider"
)

// EmailNotifier delivers alerts through the configured email provider
// registry.
type EmailNotifier struct {
	sender   string
	registry *provider.Registry
}

// NewEmailNotifier creates an EmailNotifier sending from the given
// address via the registry.
func NewEmailNotifier(sender string, registry *provider.Registry) *EmailNotifier {
	return &EmailNotifier{sender: sender, registry: registry}
}

// Send delivers one alert email.
func (n *EmailNotifier) Send(ctx context.Context, a Alert) error {
	err := n.registry.Send(ctx, &provider.Request{
		From:    n.sender,
		To:      a.Recipients,
		Subject: a.Subject,
		HTML:    a.Body,
	})
	if err != nil {
		return fmt.Errorf("notify: send %q: %w", a.Subject, err)
	}
	slog.Info("notify: alert sent", "subject", a.Subject, "recipients", len(a.Recipients))
	return nil
}

// LogNotifier logs alerts instead of sending them. Used by -no-emails
// dry runs.
type LogNotifier struct{}

// Send logs the alert at info level and always succeeds.
func (LogNotifier) Send(_ context.Context, a Alert) error {
	slog.Info("notify: skipping email send",
		"to", a.Recipients,
		"subject", a.Subject,
		"body", a.Body,
	)
	return nil
}
