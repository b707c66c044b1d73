package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/droverhq/drover-cli/api/schemas"
	"github.com/droverhq/drover-cli/internal/config"
)

// OpenAIClient speaks the OpenAI chat-completions API, including any
// compatible endpoint configured via llm.endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
	cfg    config.LLMConfig
	logger *zap.Logger
}

// NewOpenAIClient initializes the client.
func NewOpenAIClient(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (set DROVER_LLM_API_KEY)")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		cfg:    cfg,
		logger: logger.Named("llm_client.openai"),
	}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

// Generate sends the prompt window and returns the raw completion text,
// retrying transient transport failures with exponential backoff.
func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, entry := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openAIRole(entry.Role),
			Content: entry.Content,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Options.Temperature,
		MaxTokens:   req.Options.MaxTokens,
	}
	if req.Options.ForceJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx)

	var content string
	operation := func() error {
		startTime := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			if isPermanentOpenAIError(err) {
				return backoff.Permanent(err)
			}
			c.logger.Warn("Transient error during LLM request, retrying...", zap.Error(err))
			return err
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("openai API returned no choices"))
		}
		c.logger.Info("LLM generation complete (OpenAI)",
			zap.Duration("duration", time.Since(startTime)),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens))
		content = resp.Choices[0].Message.Content
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return "", fmt.Errorf("openai generation failed: %w", err)
	}
	return content, nil
}

func openAIRole(role schemas.Role) string {
	switch role {
	case schemas.RoleSystem:
		return openai.ChatMessageRoleSystem
	case schemas.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// isPermanentOpenAIError separates errors worth retrying (rate limits,
// server trouble, network hiccups) from those that never succeed.
func isPermanentOpenAIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return false
		default:
			return true
		}
	}
	// Network-level failures are transient.
	return false
}
