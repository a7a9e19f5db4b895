package agent

import (
	"os"
	"strconv"
	"time"

	"github.com/lsalihi/pulsar-compose/retry"
)

// DefaultOllamaBaseURL is used when OLLAMA_BASE_URL is unset.
const DefaultOllamaBaseURL = "http://localhost:11434"

// ProviderConfig holds per-provider connection settings. MaxRetries is the
// number of additional attempts after a call's first, so a budget of 2 means
// three attempts total.
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Config holds connection settings for every supported provider.
type Config struct {
	OpenAI    ProviderConfig
	Anthropic ProviderConfig
	Local     ProviderConfig
}

// ConfigFromEnv reads provider settings from the environment: OPENAI_API_KEY,
// ANTHROPIC_API_KEY, OLLAMA_BASE_URL, plus per-provider *_TIMEOUT (seconds)
// and *_MAX_RETRIES overrides.
func ConfigFromEnv() Config {
	return Config{
		OpenAI: ProviderConfig{
			APIKey:     os.Getenv("OPENAI_API_KEY"),
			Timeout:    envSeconds("OPENAI_TIMEOUT", 60*time.Second),
			MaxRetries: envInt("OPENAI_MAX_RETRIES", retry.DefaultMaxRetries),
		},
		Anthropic: ProviderConfig{
			APIKey:     os.Getenv("ANTHROPIC_API_KEY"),
			Timeout:    envSeconds("ANTHROPIC_TIMEOUT", 60*time.Second),
			MaxRetries: envInt("ANTHROPIC_MAX_RETRIES", retry.DefaultMaxRetries),
		},
		Local: ProviderConfig{
			BaseURL:    envString("OLLAMA_BASE_URL", DefaultOllamaBaseURL),
			Timeout:    envSeconds("OLLAMA_TIMEOUT", 60*time.Second),
			MaxRetries: envInt("OLLAMA_MAX_RETRIES", retry.DefaultMaxRetries),
		},
	}
}

func envString(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}

func envInt(key string, def int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return def
}

func envSeconds(key string, def time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
