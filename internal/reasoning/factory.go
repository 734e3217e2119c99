package reasoning

import (
	"fmt"
	"sync"

	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/httputil"
	"github.com/quantumalpha/backend/pkg/logger"
)

// Factory owns the process-wide active backend. Switching takes effect at
// the start of the next cycle: the orchestrator reads the backend once per
// cycle and holds it for the cycle's lifetime.
// ⭐ SSOT: backend selection state lives only here
type Factory struct {
	mu       sync.RWMutex
	active   string
	backends map[string]Backend
	logger   *logger.Logger
}

// NewFactory builds every configured backend and activates the one named
// in config. Backends with no API key are not registered; the rule engine
// is always available.
func NewFactory(httpClient *httputil.Client, cfg *config.Config, log *logger.Logger) (*Factory, error) {
	f := &Factory{
		backends: make(map[string]Backend),
		logger:   log,
	}

	if cfg.LLM.OpenAIAPIKey != "" {
		f.backends[ProviderOpenAI] = NewOpenAIBackend(
			httpClient, log, cfg.LLM.OpenAIBaseURL, cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIModel)
	}
	if cfg.LLM.GeminiAPIKey != "" {
		f.backends[ProviderGemini] = NewGeminiBackend(
			httpClient, log, cfg.LLM.GeminiBaseURL, cfg.LLM.GeminiAPIKey, cfg.LLM.GeminiModel)
	}
	if cfg.LLM.QwenAPIKey != "" {
		// DashScope exposes an OpenAI-compatible endpoint.
		f.backends[ProviderQwen] = newCompatibleBackend(
			httpClient, log, ProviderQwen, cfg.LLM.QwenBaseURL, cfg.LLM.QwenAPIKey, cfg.LLM.QwenModel)
	}
	f.backends[ProviderRuleEngine] = NewRuleEngine()

	if err := f.SwitchProvider(cfg.LLM.Provider); err != nil {
		// Configured provider has no key; run degraded from the start.
		log.WithField("provider", cfg.LLM.Provider).
			Warn("Configured reasoning provider unavailable, using rule engine")
		f.active = ProviderRuleEngine
	}

	return f, nil
}

// SwitchProvider activates a backend by name. The change is consulted only
// at cycle start, so an in-flight cycle finishes on the old backend.
func (f *Factory) SwitchProvider(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.backends[name]; !ok {
		return fmt.Errorf("reasoning provider %q is not configured", name)
	}
	f.active = name
	f.logger.WithField("provider", name).Info("Reasoning provider switched")
	return nil
}

// Active returns the active provider name.
func (f *Factory) Active() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.active
}

// Backend returns the active backend. Called once at cycle start.
func (f *Factory) Backend() Backend {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.backends[f.active]
}

// Available lists the registered provider names.
func (f *Factory) Available() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.backends))
	for name := range f.backends {
		names = append(names, name)
	}
	return names
}
