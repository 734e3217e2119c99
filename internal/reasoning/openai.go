package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/pkg/httputil"
	"github.com/quantumalpha/backend/pkg/logger"
)

// OpenAIBackend speaks the chat-completions wire format. Any
// OpenAI-compatible endpoint works through it.
type OpenAIBackend struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	name       string
	baseURL    string
	apiKey     string
	model      string
}

// NewOpenAIBackend creates an OpenAI-compatible backend.
func NewOpenAIBackend(httpClient *httputil.Client, log *logger.Logger, baseURL, apiKey, model string) *OpenAIBackend {
	return &OpenAIBackend{
		httpClient: httpClient,
		logger:     log,
		name:       ProviderOpenAI,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

// newCompatibleBackend builds an OpenAI-wire backend under another
// provider name. Qwen's DashScope compatible mode reuses this.
func newCompatibleBackend(httpClient *httputil.Client, log *logger.Logger, name, baseURL, apiKey, model string) *OpenAIBackend {
	b := NewOpenAIBackend(httpClient, log, baseURL, apiKey, model)
	b.name = name
	return b
}

func (b *OpenAIBackend) Name() string { return b.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one chat completion.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	payload := chatRequest{
		Model:       b.model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
	}

	resp, err := b.httpClient.PostJSONWithHeaders(ctx,
		b.baseURL+"/chat/completions", payload,
		map[string]string{"Authorization": "Bearer " + b.apiKey})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s completion: %w", b.name, contracts.ErrReasoningTimeout)
		}
		return nil, fmt.Errorf("%s completion: %w", b.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s completion: read body: %w", b.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s completion: status %d: %w", b.name, resp.StatusCode, contracts.ErrReasoningError)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%s completion: parse response: %w", b.name, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%s completion: %s: %w", b.name, parsed.Error.Message, contracts.ErrReasoningError)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%s completion: empty choices: %w", b.name, contracts.ErrReasoningError)
	}

	return &Response{
		Content:     parsed.Choices[0].Message.Content,
		Model:       parsed.Model,
		TotalTokens: parsed.Usage.TotalTokens,
	}, nil
}
