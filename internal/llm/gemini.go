package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/httpclient"
)

const (
	providerGemini = "gemini"
	maxErrorBody   = 2048
)

// GeminiService calls the Gemini generateContent REST endpoint.
type GeminiService struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	model     string
	maxTokens int64
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
	MaxOutputTokens  int64  `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// NewGemini builds a service from cfg.
func NewGemini(cfg config.LLMConfig) *GeminiService {
	return &GeminiService{
		client:    httpclient.NewClient(&httpclient.ClientConfig{Timeout: cfg.Timeout}),
		baseURL:   strings.TrimRight(cfg.GeminiBaseURL, "/"),
		apiKey:    cfg.GeminiAPIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Name implements Service.
func (s *GeminiService) Name() string {
	return providerGemini
}

// Generate implements Service.
func (s *GeminiService) Generate(ctx context.Context, req Request) (string, error) {
	prompt, err := userPrompt(req)
	if err != nil {
		return "", err
	}

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			MaxOutputTokens:  s.maxTokens,
		},
	}
	if req.Instruction != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.Instruction}}}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", s.baseURL, url.PathEscape(s.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", s.apiKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &ServiceError{Provider: providerGemini, Retryable: true, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", NewStatusError(providerGemini, resp.StatusCode, errors.New(strings.TrimSpace(string(snippet))))
	}

	var out geminiResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil {
		return "", &ServiceError{Provider: providerGemini, Retryable: true, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}

	var sb strings.Builder
	for _, c := range out.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	if sb.Len() == 0 {
		return "", &ServiceError{Provider: providerGemini, Retryable: true, Err: ErrEmptyResponse}
	}

	return sb.String(), nil
}

// New returns the provider named by cfg.Provider.
func New(cfg config.LLMConfig) (Service, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic, "":
		return NewAnthropic(cfg), nil
	case config.ProviderGemini:
		return NewGemini(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
