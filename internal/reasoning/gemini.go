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

// GeminiBackend speaks the generateContent wire format.
type GeminiBackend struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	model      string
}

// NewGeminiBackend creates a Gemini backend.
func NewGeminiBackend(httpClient *httputil.Client, log *logger.Logger, baseURL, apiKey, model string) *GeminiBackend {
	return &GeminiBackend{
		httpClient: httpClient,
		logger:     log,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

func (b *GeminiBackend) Name() string { return ProviderGemini }

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature,omitempty"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one generateContent call.
func (b *GeminiBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.User}}},
		},
	}
	if req.System != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	payload.GenerationConfig.Temperature = req.Temperature
	payload.GenerationConfig.MaxOutputTokens = req.MaxTokens

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", b.baseURL, b.model, b.apiKey)
	resp, err := b.httpClient.PostJSON(ctx, url, payload)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("gemini completion: %w", contracts.ErrReasoningTimeout)
		}
		return nil, fmt.Errorf("gemini completion: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini completion: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini completion: status %d: %w", resp.StatusCode, contracts.ErrReasoningError)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("gemini completion: parse response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("gemini completion: %s: %w", parsed.Error.Message, contracts.ErrReasoningError)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini completion: empty candidates: %w", contracts.ErrReasoningError)
	}

	return &Response{
		Content:     parsed.Candidates[0].Content.Parts[0].Text,
		Model:       b.model,
		TotalTokens: parsed.UsageMetadata.TotalTokenCount,
	}, nil
}
