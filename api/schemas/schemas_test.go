package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionDecisionElementID(t *testing.T) {
	tests := []struct {
		name   string
		raw    interface{}
		wantID int
		wantOK bool
	}{
		{"json number", float64(4), 4, true},
		{"quoted digits", "12", 12, true},
		{"padded string", " 7 ", 7, true},
		{"zero", float64(0), 0, true},
		{"not numeric", "first", 0, false},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ActionDecision{Kind: ActionClickElement, Args: map[string]interface{}{"element_id": tt.raw}}
			id, ok := d.ElementID()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, id)
			}
		})
	}

	d := ActionDecision{Kind: ActionClickElement}
	_, ok := d.ElementID()
	assert.False(t, ok, "missing argument must not resolve")
}

func TestActionDecisionValidate(t *testing.T) {
	tests := []struct {
		name    string
		d       ActionDecision
		wantErr bool
	}{
		{"navigate ok", ActionDecision{Kind: ActionNavigate, Args: map[string]interface{}{"url": "https://example.com"}}, false},
		{"navigate missing url", ActionDecision{Kind: ActionNavigate}, true},
		{"click ok", ActionDecision{Kind: ActionClickElement, Args: map[string]interface{}{"element_id": float64(2)}}, false},
		{"click missing id", ActionDecision{Kind: ActionClickElement}, true},
		{"type ok", ActionDecision{Kind: ActionTypeText, Args: map[string]interface{}{"element_id": float64(0), "text": "hello"}}, false},
		{"type empty text ok", ActionDecision{Kind: ActionTypeText, Args: map[string]interface{}{"element_id": float64(0), "text": ""}}, false},
		{"type missing text", ActionDecision{Kind: ActionTypeText, Args: map[string]interface{}{"element_id": float64(0)}}, true},
		{"select missing value", ActionDecision{Kind: ActionSelectOption, Args: map[string]interface{}{"element_id": float64(1)}}, true},
		{"upload ok", ActionDecision{Kind: ActionUploadFile, Args: map[string]interface{}{"element_id": float64(1), "file_path": "/tmp/a.txt"}}, false},
		{"scroll default", ActionDecision{Kind: ActionScrollPage}, false},
		{"scroll bad direction", ActionDecision{Kind: ActionScrollPage, Args: map[string]interface{}{"direction": "sideways"}}, true},
		{"query missing", ActionDecision{Kind: ActionQueryDOM}, true},
		{"store empty", ActionDecision{Kind: ActionStoreContext, Args: map[string]interface{}{"tool": "store_context"}}, true},
		{"store legacy pair", ActionDecision{Kind: ActionStoreContext, Args: map[string]interface{}{"key": "price", "value": "42"}}, false},
		{"done bare", ActionDecision{Kind: ActionDone}, false},
		{"unknown", ActionDecision{Kind: ActionKind("teleport")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBoolArgDefault(t *testing.T) {
	absent := ActionDecision{Kind: ActionDone, Args: map[string]interface{}{"summary": "X"}}
	assert.True(t, absent.BoolArgDefault("success", true), "absent flag takes the default")

	explicit := ActionDecision{Kind: ActionDone, Args: map[string]interface{}{"success": false}}
	assert.False(t, explicit.BoolArgDefault("success", true), "explicit false wins over the default")

	asString := ActionDecision{Kind: ActionDone, Args: map[string]interface{}{"success": "true"}}
	assert.True(t, asString.BoolArgDefault("success", false))
}

func TestContextPayloadForms(t *testing.T) {
	legacy := ActionDecision{Kind: ActionStoreContext, Args: map[string]interface{}{"key": "total", "value": 19.99}}
	assert.Equal(t, map[string]interface{}{"total": 19.99}, legacy.ContextPayload())

	flat := ActionDecision{Kind: ActionStoreContext, Args: map[string]interface{}{
		"tool":      "store_context",
		"thought":   "saving",
		"reasoning": "asked to",
		"price":     "42",
		"currency":  "EUR",
	}}
	got := flat.ContextPayload()
	require.Len(t, got, 2)
	assert.Equal(t, "42", got["price"])
	assert.Equal(t, "EUR", got["currency"])
}

func TestNormalizedTarget(t *testing.T) {
	byID := ActionDecision{Kind: ActionClickElement, Args: map[string]interface{}{"element_id": float64(3)}}
	assert.Equal(t, "element:3", byID.NormalizedTarget())

	byURL := ActionDecision{Kind: ActionNavigate, Args: map[string]interface{}{"url": "https://Example.com/Path/"}}
	assert.Equal(t, "url:https://example.com/path", byURL.NormalizedTarget())

	byQuery := ActionDecision{Kind: ActionQueryDOM, Args: map[string]interface{}{"query": "Checkout Button"}}
	assert.Equal(t, "query:checkout button", byQuery.NormalizedTarget())

	none := ActionDecision{Kind: ActionTakeScreenshot}
	assert.Equal(t, "", none.NormalizedTarget())
}

func TestObservationStateSummaryAndIDs(t *testing.T) {
	obs := &ObservationState{
		URL:   "https://example.com/login",
		Title: "Sign in",
		Elements: []ElementDescriptor{
			{ID: 0, Tag: "input", Label: "Username", Visible: true, Interactable: true},
			{ID: 1, Tag: "button", Label: "Log in", Visible: true, Interactable: true},
		},
	}
	assert.True(t, obs.ValidID(0))
	assert.True(t, obs.ValidID(1))
	assert.False(t, obs.ValidID(2))
	assert.False(t, obs.ValidID(-1))

	s := obs.Summary()
	assert.Contains(t, s, "[0] <input> \"Username\"")
	assert.Contains(t, s, "[1] <button> \"Log in\"")
	assert.Contains(t, s, "https://example.com/login")

	empty := &ObservationState{URL: "about:blank"}
	assert.Contains(t, empty.Summary(), "No interactive elements")
}

func TestOutcomeFeedback(t *testing.T) {
	ok := ActionOutcome{Kind: ActionNavigate, Success: true, Message: "Navigated to https://example.com"}
	assert.Contains(t, ok.Feedback(), "SUCCESS")

	failed := ActionOutcome{Kind: ActionClickElement, Success: false, Code: ErrCodeTimeout, Message: "click timed out"}
	fb := failed.Feedback()
	assert.Contains(t, fb, "FAILURE")
	assert.Contains(t, fb, string(ErrCodeTimeout))
}

func TestAgentErrorWrapping(t *testing.T) {
	inner := assert.AnError
	err := NewAgentError(FailureLoopDetected, "3 identical failing actions", inner)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), string(FailureLoopDetected))
}
