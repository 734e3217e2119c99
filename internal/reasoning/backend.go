package reasoning

import "context"

// Request is one completion request to a reasoning backend.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Response is a backend completion.
type Response struct {
	Content     string
	Model       string
	TotalTokens int
}

// Backend is one reasoning provider. Implementations must be safe for
// concurrent use.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Provider names accepted by the factory.
const (
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderQwen       = "qwen"
	ProviderRuleEngine = "rule_engine"
)
