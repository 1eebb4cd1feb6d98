package llm

import (
	"fmt"
	"strings"

	"ai-tutor/internal/config"
)

const (
	ProviderOpenAI = "openai"
	ProviderYandex = "yandex"
)

// Factory creates oracle clients with consistent configuration.
type Factory struct {
	OpenaiAPIKey        string
	OpenaiBaseURL       string
	OpenaiModel         string
	OpenaiClassifyModel string
	OpenRouterReferrer  string
	OpenRouterTitle     string
	YandexOAuthToken    string
	YandexFolderID      string
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		OpenaiAPIKey:        cfg.OpenAIAPIKey,
		OpenaiBaseURL:       cfg.OpenAIBaseURL,
		OpenaiModel:         cfg.OpenAIModel,
		OpenaiClassifyModel: cfg.OpenAIClassifierModel,
		OpenRouterReferrer:  cfg.OpenRouterReferrer,
		OpenRouterTitle:     cfg.OpenRouterTitle,
		YandexOAuthToken:    cfg.YandexOAuthToken,
		YandexFolderID:      cfg.YandexFolderID,
	}
}

func (f *Factory) CreateClient(provider string) (Client, error) {
	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		return NewOpenAI(f.OpenaiAPIKey, f.OpenaiBaseURL, f.OpenaiModel, f.OpenaiClassifyModel, f.OpenRouterReferrer, f.OpenRouterTitle), nil
	case ProviderYandex:
		return NewYandex(f.YandexOAuthToken, f.YandexFolderID)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
