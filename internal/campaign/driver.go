package campaign

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/pkg/notion"
)

// NewDispatcher builds the dispatcher selected by campaign.driver.
func NewDispatcher(ctx context.Context, cfg *config.Config) (Dispatcher, error) {
	switch cfg.Campaign.Driver {
	case "", "none":
		return Disabled{}, nil
	case "webhook":
		if cfg.Campaign.WebhookURL == "" {
			return nil, eris.New("campaign: webhook_url is required")
		}
		return NewWebhook(cfg.Campaign.WebhookURL, cfg.Campaign.WebhookToken,
			WithWebhookRetry(resilience.FromRetryConfig(cfg.Retry)),
		), nil
	case "ses":
		api, err := NewSESClient(ctx, cfg.SES)
		if err != nil {
			return nil, err
		}
		return NewSES(api, cfg.SES.Topic), nil
	case "notion":
		if cfg.Campaign.NotionToken == "" || cfg.Campaign.NotionDB == "" {
			return nil, eris.New("campaign: notion_token and notion_db are required")
		}
		return NewNotion(notion.NewClient(cfg.Campaign.NotionToken), cfg.Campaign.NotionDB), nil
	default:
		return nil, eris.Errorf("campaign: unsupported driver %q", cfg.Campaign.Driver)
	}
}
