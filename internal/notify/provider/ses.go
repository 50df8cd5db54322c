package provider

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/clustermon/cluster-email-alerts/internal/config"
)

// SESProvider sends email through AWS SES. Credentials come from the
// default AWS chain (environment, shared config, instance role).
type SESProvider struct {
	client *sesv2.Client
}

// NewSESProvider builds the ses backend. A failure to load AWS config
// leaves the provider unconfigured rather than failing the run; it only
// matters if ses is actually selected or reached as a fallback.
func NewSESProvider(cfg config.SESConfig) *SESProvider {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		slog.Warn("provider: ses unavailable, could not load AWS config", "err", err)
		return &SESProvider{}
	}
	return &SESProvider{client: sesv2.NewFromConfig(awsCfg)}
}

func (p *SESProvider) Name() string { return "ses" }

func (p *SESProvider) IsConfigured() bool { return p.client != nil }

// Send delivers one email via the SES v2 API.
func (p *SESProvider) Send(ctx context.Context, req *Request) error {
	if p.client == nil {
		return fmt.Errorf("ses: client not initialized")
	}
	if len(req.To) == 0 {
		return fmt.Errorf("ses: no recipients")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: &req.From,
		Destination:      &types.Destination{ToAddresses: req.To},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &req.Subject},
				Body:    &types.Body{Html: &types.Content{Data: &req.HTML}},
			},
		},
	}
	if _, err := p.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses: send: %w", err)
	}
	return nil
}
