package config

import (
	"log"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	ListenAddr   string  `env:"LISTEN_ADDR" envDefault:":8080"`
	Debug        bool    `env:"DEBUG" envDefault:"false"`
	DatabasePath string  `env:"DATABASE_PATH" envDefault:"data/tutor.db"`
	AllowedUsers []int64 `env:"ALLOWED_USERS" envSeparator:":"`

	AllowlistFilePath string `env:"ALLOWLIST_FILE_PATH" envDefault:"data/allowlist.json"`

	// LLM settings
	LLMProvider           string `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey          string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL         string `env:"OPENAI_BASE_URL"`
	OpenAIModel           string `env:"OPENAI_MODEL" envDefault:"gpt-4"`
	OpenAIClassifierModel string `env:"OPENAI_CLASSIFIER_MODEL" envDefault:"gpt-3.5-turbo"`
	YandexOAuthToken      string `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID        string `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Transcript caps for oracle calls
	MaxMessageChars    int `env:"MAX_MESSAGE_CHARS" envDefault:"8000"`
	MaxTranscriptChars int `env:"MAX_TRANSCRIPT_CHARS" envDefault:"24000"`

	// Scheduled store maintenance
	MaintenanceCron string `env:"MAINTENANCE_CRON" envDefault:"0 3 * * *"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
