package providers

import (
	"github.com/samber/do/v2"

	"github.com/unearthedapp/unearthed-server/internal/ai"
	"github.com/unearthedapp/unearthed-server/internal/config"
	"github.com/unearthedapp/unearthed-server/internal/delivery"
)

// ProvideMailer provides the SMTP mailer. It is always constructed; an
// unconfigured mailer reports Configured() == false and the email job no-ops.
func ProvideMailer(i do.Injector) (*delivery.Mailer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return delivery.NewMailer(cfg.Email), nil
}

// ProvideNotionClient provides the Notion API client.
func ProvideNotionClient(i do.Injector) (*delivery.NotionClient, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return delivery.NewNotionClient(delivery.NotionOptions{
		ClientID:     cfg.Notion.ClientID,
		ClientSecret: cfg.Notion.ClientSecret,
	}), nil
}

// ProvideCapacitiesClient provides the Capacities API client.
func ProvideCapacitiesClient(_ do.Injector) (*delivery.CapacitiesClient, error) {
	return delivery.NewCapacitiesClient("", nil), nil
}

// ProvideAIClient provides the chat completion client.
func ProvideAIClient(i do.Injector) (*ai.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return ai.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model), nil
}
