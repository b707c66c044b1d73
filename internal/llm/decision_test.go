package llm

import (
	"context"
	"errors"
	"testing"

	fuzzheaders "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/droverhq/drover-cli/api/schemas"
	"github.com/droverhq/drover-cli/internal/config"
)

// scriptedClient returns canned responses in order.
type scriptedClient struct {
	responses []string
	errs      []error
	requests  []schemas.GenerationRequest
}

func (s *scriptedClient) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], err
	}
	return "", err
}

func (s *scriptedClient) Name() string { return "scripted" }

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantKind schemas.ActionKind
		wantErr  bool
	}{
		{
			name:     "bare json",
			response: `{"thought": "open the site", "tool": "navigate", "args": {"url": "https://example.com"}}`,
			wantKind: schemas.ActionNavigate,
		},
		{
			name:     "markdown fence",
			response: "Here is my action:\n```json\n{\"tool\": \"click_element\", \"args\": {\"element_id\": 3}}\n```",
			wantKind: schemas.ActionClickElement,
		},
		{
			name:     "fence without language tag",
			response: "```\n{\"tool\": \"go_back\"}\n```",
			wantKind: schemas.ActionGoBack,
		},
		{
			name:     "prose around raw json",
			response: `I will wait. {"tool": "wait", "args": {"seconds": 3}} Let me know.`,
			wantKind: schemas.ActionWait,
		},
		{name: "no json at all", response: "I am not sure what to do.", wantErr: true},
		{name: "empty response", response: "", wantErr: true},
		{name: "missing tool field", response: `{"thought": "hmm", "args": {}}`, wantErr: true},
		{name: "unknown tool", response: `{"tool": "levitate"}`, wantErr: true},
		{name: "invalid args", response: `{"tool": "navigate", "args": {}}`, wantErr: true},
		{name: "broken json", response: `{"tool": "navigate", "args": {`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDecision(tt.response)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, d.Kind)
		})
	}
}

func testWindow() []schemas.TranscriptEntry {
	return []schemas.TranscriptEntry{
		{Role: schemas.RoleSystem, Content: "system framing"},
		{Role: schemas.RoleUser, Content: "observation"},
	}
}

func newTestAdapter(client schemas.LLMClient) *DecisionAdapter {
	return NewDecisionAdapter(client, config.LLMConfig{Temperature: 0.1, MaxTokens: 512}, zap.NewNop())
}

func TestDecideHappyPath(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"tool": "take_screenshot"}`}}
	adapter := newTestAdapter(client)

	d, raw, err := adapter.Decide(context.Background(), testWindow())
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionTakeScreenshot, d.Kind)
	assert.NotEmpty(t, raw)
	assert.Len(t, client.requests, 1)
	assert.True(t, client.requests[0].Options.ForceJSON)
}

func TestDecideCorrectiveRepromptRecovers(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"I think I should probably click something?",
		`{"tool": "click_element", "args": {"element_id": 1}}`,
	}}
	adapter := newTestAdapter(client)

	d, _, err := adapter.Decide(context.Background(), testWindow())
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionClickElement, d.Kind)

	require.Len(t, client.requests, 2)
	retry := client.requests[1].Messages
	// The retry window carries the bad response and the corrective nudge.
	assert.Equal(t, schemas.RoleAssistant, retry[len(retry)-2].Role)
	assert.Contains(t, retry[len(retry)-1].Content, "not a valid action")
}

func TestDecideExactlyOneReprompt(t *testing.T) {
	client := &scriptedClient{responses: []string{"garbage", "more garbage", `{"tool": "go_back"}`}}
	adapter := newTestAdapter(client)

	_, _, err := adapter.Decide(context.Background(), testWindow())
	require.Error(t, err)

	var agentErr *schemas.AgentError
	require.True(t, errors.As(err, &agentErr))
	assert.Equal(t, schemas.FailureDecision, agentErr.Kind)
	assert.Len(t, client.requests, 2, "a second corrective re-prompt must never be sent")
}

func TestDecideTransportError(t *testing.T) {
	client := &scriptedClient{responses: []string{""}, errs: []error{errors.New("connection refused")}}
	adapter := newTestAdapter(client)

	_, _, err := adapter.Decide(context.Background(), testWindow())
	require.Error(t, err)

	var agentErr *schemas.AgentError
	require.True(t, errors.As(err, &agentErr))
	assert.Equal(t, schemas.FailureDecision, agentErr.Kind)
	assert.Len(t, client.requests, 1, "transport failures must not trigger a corrective re-prompt")
}

func FuzzParseDecision(f *testing.F) {
	f.Add([]byte(`{"tool": "navigate", "args": {"url": "https://example.com"}}`))
	f.Add([]byte("```json\n{\"tool\": \"done\"}\n```"))
	f.Add([]byte(`{"tool": `))
	f.Add([]byte("no json here"))
	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzzheaders.NewConsumer(data)
		response, err := consumer.GetString()
		if err != nil {
			return
		}
		// Must never panic; errors are fine.
		d, err := ParseDecision(response)
		if err == nil && !d.Kind.IsValid() {
			t.Fatalf("parse accepted invalid kind %q", d.Kind)
		}
	})
}
