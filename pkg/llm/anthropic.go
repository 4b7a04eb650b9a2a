package llm

import (
	"context"
	"fmt"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	"github.com/askdb-inc/askdb-engine/pkg/config"
)

const anthropicMaxTokens = 2048

// AnthropicClient provides access to the Anthropic Messages API.
// Anthropic has no embedding endpoint, so CreateEmbedding always fails
// and callers degrade to exact-match caching.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicClient creates a client from AI configuration. If logger
// is nil, a no-op logger is used.
func NewAnthropicClient(cfg config.AIConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("api key is required for anthropic provider")
	}
	if cfg.LLMModel == "" {
		return nil, fmt.Errorf("llm_model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AnthropicClient{
		client: anthropic.NewClient(cfg.LLMAPIKey),
		model:  cfg.LLMModel,
		logger: logger.Named("anthropic"),
	}, nil
}

// GenerateResponse generates a completion through the Messages API.
func (c *AnthropicClient) GenerateResponse(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
	start := time.Now()
	temp := float32(temperature)

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      systemMessage,
		MaxTokens:   anthropicMaxTokens,
		Temperature: &temp,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		c.logger.Error("messages request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", fmt.Errorf("create messages: %w", err)
	}

	content := resp.GetFirstContentText()
	if content == "" {
		return "", fmt.Errorf("no content in response")
	}

	c.logger.Debug("messages request",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return content, nil
}

// CreateEmbedding is unsupported on this provider.
func (c *AnthropicClient) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("%w: anthropic provider has no embedding endpoint", apperrors.ErrEmbeddingFailed)
}

// Model returns the configured generation model name.
func (c *AnthropicClient) Model() string {
	return c.model
}

var _ Client = (*AnthropicClient)(nil)
