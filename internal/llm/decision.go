package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/droverhq/drover-cli/api/schemas"
	"github.com/droverhq/drover-cli/internal/config"
)

var fastjson = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonBlockRegex extracts a JSON object from a markdown code block.
var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ParseDecision extracts and validates one ActionDecision from raw model
// output. It tolerates markdown fences and prose around the JSON object.
func ParseDecision(response string) (schemas.ActionDecision, error) {
	response = strings.TrimSpace(response)

	var payload string
	if matches := jsonBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		payload = strings.TrimSpace(matches[1])
	} else if first, last := strings.Index(response, "{"), strings.LastIndex(response, "}"); first != -1 && last > first {
		payload = response[first : last+1]
	} else {
		payload = response
	}
	if payload == "" {
		return schemas.ActionDecision{}, fmt.Errorf("no JSON object found in model response")
	}

	var decision schemas.ActionDecision
	if err := fastjson.Unmarshal([]byte(payload), &decision); err != nil {
		return schemas.ActionDecision{}, fmt.Errorf("failed to unmarshal extracted JSON: %w", err)
	}
	if decision.Kind == "" {
		return schemas.ActionDecision{}, fmt.Errorf("model response missing required \"tool\" field")
	}
	if err := decision.Validate(); err != nil {
		return schemas.ActionDecision{}, err
	}
	return decision, nil
}

// DecisionAdapter binds a provider client to the decision contract: one
// transcript window in, one valid decision out. A malformed response
// earns exactly one corrective re-prompt before the step fails.
type DecisionAdapter struct {
	client schemas.LLMClient
	cfg    config.LLMConfig
	logger *zap.Logger
}

// NewDecisionAdapter creates an adapter over the given client.
func NewDecisionAdapter(client schemas.LLMClient, cfg config.LLMConfig, logger *zap.Logger) *DecisionAdapter {
	return &DecisionAdapter{
		client: client,
		cfg:    cfg,
		logger: logger.Named("decision"),
	}
}

// Decide requests the next action for the given prompt window.
func (a *DecisionAdapter) Decide(ctx context.Context, window []schemas.TranscriptEntry) (schemas.ActionDecision, string, error) {
	req := schemas.GenerationRequest{
		Messages: window,
		Options: schemas.GenerationOptions{
			Temperature: a.cfg.Temperature,
			MaxTokens:   a.cfg.MaxTokens,
			ForceJSON:   true,
		},
	}

	raw, err := a.client.Generate(ctx, req)
	if err != nil {
		return schemas.ActionDecision{}, "", schemas.NewAgentError(schemas.FailureDecision, "model call failed", err)
	}

	decision, parseErr := ParseDecision(raw)
	if parseErr == nil {
		return decision, raw, nil
	}

	a.logger.Warn("Malformed decision, sending one corrective re-prompt",
		zap.Error(parseErr),
		zap.String("raw_response", raw))

	retryReq := req
	retryReq.Messages = append(append([]schemas.TranscriptEntry{}, window...),
		schemas.TranscriptEntry{Role: schemas.RoleAssistant, Content: raw},
		schemas.TranscriptEntry{Role: schemas.RoleUser, Content: correctivePrompt(parseErr)},
	)

	raw, err = a.client.Generate(ctx, retryReq)
	if err != nil {
		return schemas.ActionDecision{}, "", schemas.NewAgentError(schemas.FailureDecision, "model call failed after corrective re-prompt", err)
	}
	decision, parseErr = ParseDecision(raw)
	if parseErr != nil {
		return schemas.ActionDecision{}, "", schemas.NewAgentError(schemas.FailureDecision, "model produced no valid decision after corrective re-prompt", parseErr)
	}
	return decision, raw, nil
}
