package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/config"
)

const providerAnthropic = "anthropic"

// AnthropicService generates through the Anthropic Messages API. SDK
// retries are disabled; Invoker owns the retry schedule.
type AnthropicService struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic builds a service from cfg. Extra options are appended after
// the defaults, so tests can point the client at a local server.
func NewAnthropic(cfg config.LLMConfig, opts ...option.RequestOption) *AnthropicService {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.AnthropicAPIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}

	return &AnthropicService{
		client:    anthropic.NewClient(append(base, opts...)...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Name implements Service.
func (s *AnthropicService) Name() string {
	return providerAnthropic
}

// Generate implements Service.
func (s *AnthropicService) Generate(ctx context.Context, req Request) (string, error) {
	prompt, err := userPrompt(req)
	if err != nil {
		return "", err
	}

	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: req.Instruction}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", mapAnthropicError(ctx, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &ServiceError{Provider: providerAnthropic, Retryable: true, Err: ErrEmptyResponse}
	}

	return sb.String(), nil
}

func mapAnthropicError(ctx context.Context, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return NewStatusError(providerAnthropic, apiErr.StatusCode, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	// Transport failures (resets, timeouts) are worth another attempt.
	return &ServiceError{Provider: providerAnthropic, Retryable: true, Err: err}
}

// userPrompt renders the payload followed by the response schema.
func userPrompt(req Request) (string, error) {
	if len(req.Schema) == 0 {
		return req.Payload, nil
	}

	schema, err := json.MarshalIndent(req.Schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode response schema: %w", err)
	}

	return req.Payload +
		"\n\nRespond with a single JSON object that validates against this JSON schema. " +
		"Do not wrap it in prose.\n" + string(schema), nil
}
