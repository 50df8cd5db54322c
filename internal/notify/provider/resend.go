package provider

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/clustermon/cluster-email-alerts/internal/config"
)

// ResendProvider sends email through the Resend API.
type ResendProvider struct {
	client *resend.Client
}

// NewResendProvider builds the resend backend. Without an API key the
// provider stays unconfigured.
func NewResendProvider(cfg config.ResendConfig) *ResendProvider {
	key := cfg.APIKey()
	if key == "" {
		return &ResendProvider{}
	}
	return &ResendProvider{client: resend.NewClient(key)}
}

func (p *ResendProvider) Name() string { return "resend" }

func (p *ResendProvider) IsConfigured() bool { return p.client != nil }

// Send delivers one email via the Resend API.
func (p *ResendProvider) Send(ctx context.Context, req *Request) error {
	if p.client == nil {
		return fmt.Errorf("resend: client not initialized")
	}
	if len(req.To) == 0 {
		return fmt.Errorf("resend: no recipients")
	}

	params := &resend.SendEmailRequest{
		From:    req.From,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
	}
	if _, err := p.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: send: %w", err)
	}
	return nil
}
