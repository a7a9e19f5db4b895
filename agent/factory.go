package agent

import (
	"sync"
)

// Factory creates and caches one Agent per provider name. It is safe for
// concurrent use.
type Factory struct {
	config Config
	mutex  sync.Mutex
	agents map[string]Agent
}

// NewFactory returns a Factory backed by the given provider settings.
func NewFactory(config Config) *Factory {
	return &Factory{
		config: config,
		agents: map[string]Agent{},
	}
}

// Get returns the cached agent for a provider, creating it on first use.
// Supported providers are "openai", "anthropic", and "local" (Ollama, also
// accepted as "ollama").
func (f *Factory) Get(provider string) (Agent, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if agent, ok := f.agents[provider]; ok {
		return agent, nil
	}
	agent, err := f.create(provider)
	if err != nil {
		return nil, err
	}
	f.agents[provider] = agent
	return agent, nil
}

func (f *Factory) create(provider string) (Agent, error) {
	switch provider {
	case "openai":
		return NewOpenAIAgent(f.config.OpenAI)
	case "anthropic":
		return NewAnthropicAgent(f.config.Anthropic)
	case "local", "ollama":
		return NewOllamaAgent(f.config.Local), nil
	}
	return nil, callErrorf(provider, 0, "unsupported provider")
}

// MaxRetries returns the configured retry budget for a provider, zero when
// the provider is unknown or unconfigured.
func (f *Factory) MaxRetries(provider string) int {
	switch provider {
	case "openai":
		return f.config.OpenAI.MaxRetries
	case "anthropic":
		return f.config.Anthropic.MaxRetries
	case "local", "ollama":
		return f.config.Local.MaxRetries
	}
	return 0
}

// Register installs a custom agent under a provider name, replacing any
// cached instance. Used by tests and by embedders with bespoke backends.
func (f *Factory) Register(provider string, agent Agent) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.agents[provider] = agent
}

// SupportedProviders lists the provider names Get accepts out of the box.
func SupportedProviders() []string {
	return []string{"openai", "anthropic", "local"}
}
