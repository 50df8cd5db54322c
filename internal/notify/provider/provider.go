package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clustermon/cluster-email-alerts/internal/config"
)

// Request is one email to be sent.
type Request struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Provider is the interface every email backend implements.
type Provider interface {
	// Name returns the provider name ("smtp", "ses", "resend").
	Name() string

	// IsConfigured reports whether the provider has enough configuration
	// to attempt a send.
	IsConfigured() bool

	// Send delivers one email.
	Send(ctx context.Context, req *Request) error
}

// Registry holds the available providers and routes sends to the
// configured primary, falling back to any other configured provider when
// the primary fails.
type Registry struct {
	primary   string
	providers []Provider
}

// NewRegistry creates a Registry with the given primary provider name.
func NewRegistry(primary string, providers ...Provider) *Registry {
	return &Registry{primary: primary, providers: providers}
}

// FromConfig builds a Registry with all backends registered and the
// configured provider as primary.
func FromConfig(cfg config.EmailConfig) *Registry {
	return NewRegistry(cfg.Provider,
		NewSMTPProvider(cfg.SMTP),
		NewSESProvider(cfg.SES),
		NewResendProvider(cfg.Resend),
	)
}

// Send delivers req via the primary provider, trying other configured
// providers in registration order if the primary is unconfigured or
// fails. The primary's error is returned when every fallback fails too.
func (r *Registry) Send(ctx context.Context, req *Request) error {
	var primaryErr error

	for _, p := range r.providers {
		if p.Name() != r.primary {
			continue
		}
		if !p.IsConfigured() {
			primaryErr = fmt.Errorf("provider %q is not configured", p.Name())
			break
		}
		primaryErr = p.Send(ctx, req)
		if primaryErr == nil {
			return nil
		}
		break
	}
	if primaryErr == nil {
		primaryErr = fmt.Errorf("provider %q is not registered", r.primary)
	}

	for _, p := range r.providers {
		if p.Name() == r.primary || !p.IsConfigured() {
			continue
		}
		slog.Warn("provider: primary failed, trying fallback",
			"primary", r.primary, "fallback", p.Name(), "err", primaryErr)
		if err := p.Send(ctx, req); err == nil {
			return nil
		}
	}
	return primaryErr
}
