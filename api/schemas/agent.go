// Package schemas defines the shared data model for the agent: tasks,
// action decisions, execution outcomes, observations and results. It sits
// at the bottom of the dependency graph so every internal package can
// exchange these types without import cycles.
package schemas

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Task is a single natural-language objective handed to the agent,
// optionally anchored at a starting URL.
type Task struct {
	ID        string    `json:"id"`
	Goal      string    `json:"goal"`
	StartURL  string    `json:"start_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ActionKind enumerates every action the decision model may request.
type ActionKind string

const (
	ActionNavigate       ActionKind = "navigate"
	ActionClickElement   ActionKind = "click_element"
	ActionTypeText       ActionKind = "type_text"
	ActionSelectOption   ActionKind = "select_option"
	ActionScrollPage     ActionKind = "scroll_page"
	ActionTakeScreenshot ActionKind = "take_screenshot"
	ActionWait           ActionKind = "wait"
	ActionGoBack         ActionKind = "go_back"
	ActionQueryDOM       ActionKind = "query_dom"
	ActionStoreContext   ActionKind = "store_context"
	ActionUploadFile     ActionKind = "upload_file"
	ActionDone           ActionKind = "done"
)

// AllActionKinds lists the kinds in the order they are presented to the
// decision model.
var AllActionKinds = []ActionKind{
	ActionNavigate,
	ActionClickElement,
	ActionTypeText,
	ActionSelectOption,
	ActionScrollPage,
	ActionTakeScreenshot,
	ActionWait,
	ActionGoBack,
	ActionQueryDOM,
	ActionStoreContext,
	ActionUploadFile,
	ActionDone,
}

// IsValid reports whether k is one of the known action kinds.
func (k ActionKind) IsValid() bool {
	for _, known := range AllActionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ReservedDecisionFields are top-level decision keys that must never leak
// into stored context data when the model uses the flattened
// store_context form.
var ReservedDecisionFields = map[string]struct{}{
	"tool":      {},
	"thought":   {},
	"reasoning": {},
}

// ActionDecision is one parsed decision from the model: which action to
// take and with what arguments. Args values keep their decoded JSON types
// (string, float64, bool, nested maps).
type ActionDecision struct {
	Thought string                 `json:"thought,omitempty"`
	Kind    ActionKind             `json:"tool"`
	Args    map[string]interface{} `json:"args,omitempty"`
}

// ElementID extracts the target element index from the arguments. JSON
// numbers decode as float64, but models occasionally emit quoted digits,
// so both forms are accepted.
func (d ActionDecision) ElementID() (int, bool) {
	raw, ok := d.Args["element_id"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// StringArg returns the named argument as a trimmed string.
func (d ActionDecision) StringArg(name string) string {
	raw, ok := d.Args[name]
	if !ok {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		return fmt.Sprintf("%v", raw)
	}
	return strings.TrimSpace(s)
}

// BoolArg returns the named argument as a bool, tolerating the string
// forms "true"/"false".
func (d ActionDecision) BoolArg(name string) bool {
	raw, ok := d.Args[name]
	if !ok {
		return false
	}
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	default:
		return false
	}
}

// BoolArgDefault is BoolArg with a fallback for an absent argument.
func (d ActionDecision) BoolArgDefault(name string, def bool) bool {
	if _, ok := d.Args[name]; !ok {
		return def
	}
	return d.BoolArg(name)
}

// FloatArg returns the named argument as a float64.
func (d ActionDecision) FloatArg(name string) (float64, bool) {
	raw, ok := d.Args[name]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Validate checks that the decision names a known action and carries the
// arguments that action requires. It does not check element IDs against
// the current observation; that is the orchestrator's job.
func (d ActionDecision) Validate() error {
	if !d.Kind.IsValid() {
		return fmt.Errorf("unknown action %q", d.Kind)
	}
	requireElement := func() error {
		if _, ok := d.ElementID(); !ok {
			return fmt.Errorf("action %q requires a numeric element_id argument", d.Kind)
		}
		return nil
	}
	switch d.Kind {
	case ActionNavigate:
		if d.StringArg("url") == "" {
			return fmt.Errorf("action %q requires a url argument", d.Kind)
		}
	case ActionClickElement:
		return requireElement()
	case ActionTypeText:
		if err := requireElement(); err != nil {
			return err
		}
		if _, ok := d.Args["text"]; !ok {
			return fmt.Errorf("action %q requires a text argument", d.Kind)
		}
	case ActionSelectOption:
		if err := requireElement(); err != nil {
			return err
		}
		if d.StringArg("value") == "" {
			return fmt.Errorf("action %q requires a value argument", d.Kind)
		}
	case ActionUploadFile:
		if err := requireElement(); err != nil {
			return err
		}
		if d.StringArg("file_path") == "" {
			return fmt.Errorf("action %q requires a file_path argument", d.Kind)
		}
	case ActionScrollPage:
		if dir := d.StringArg("direction"); dir != "" && dir != "up" && dir != "down" {
			return fmt.Errorf("action %q direction must be \"up\" or \"down\", got %q", d.Kind, dir)
		}
	case ActionQueryDOM:
		if d.StringArg("query") == "" {
			return fmt.Errorf("action %q requires a query argument", d.Kind)
		}
	case ActionStoreContext:
		if len(d.ContextPayload()) == 0 {
			return fmt.Errorf("action %q requires at least one non-reserved field to store", d.Kind)
		}
	}
	return nil
}

// ContextPayload returns the key/value pairs a store_context decision
// wants persisted. Two argument shapes are accepted: the explicit
// {"key": ..., "value": ...} pair, and a flattened map of arbitrary
// fields with reserved decision keys filtered out.
func (d ActionDecision) ContextPayload() map[string]interface{} {
	if len(d.Args) == 0 {
		return nil
	}
	if key, ok := d.Args["key"].(string); ok {
		if value, ok := d.Args["value"]; ok && strings.TrimSpace(key) != "" {
			return map[string]interface{}{strings.TrimSpace(key): value}
		}
	}
	payload := make(map[string]interface{}, len(d.Args))
	for k, v := range d.Args {
		if _, reserved := ReservedDecisionFields[k]; reserved {
			continue
		}
		payload[k] = v
	}
	return payload
}

// NormalizedTarget collapses the decision's target into a stable string
// used for loop-signature comparison: the element index when one is
// addressed, otherwise the normalized URL, otherwise the query text.
func (d ActionDecision) NormalizedTarget() string {
	if id, ok := d.ElementID(); ok {
		return "element:" + strconv.Itoa(id)
	}
	if url := d.StringArg("url"); url != "" {
		return "url:" + strings.TrimRight(strings.ToLower(url), "/")
	}
	if q := d.StringArg("query"); q != "" {
		return "query:" + strings.ToLower(q)
	}
	return ""
}

// ErrorCode classifies why an action failed. Codes feed both the model
// (as part of the recorded outcome) and the orchestrator's terminal
// decisions.
type ErrorCode string

const (
	ErrCodeNone              ErrorCode = ""
	ErrCodeTimeout           ErrorCode = "TIMEOUT"
	ErrCodeElementNotFound   ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeNotInteractable   ErrorCode = "NOT_INTERACTABLE"
	ErrCodeNavigation        ErrorCode = "NAVIGATION_ERROR"
	ErrCodeInvalidElement    ErrorCode = "INVALID_ELEMENT_ID"
	ErrCodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
	ErrCodeUnknownAction     ErrorCode = "UNKNOWN_ACTION"
	ErrCodeCritical          ErrorCode = "CRITICAL_FAILURE"
)

// ActionOutcome is the result of executing (or refusing to execute) one
// decision. Exactly one outcome is recorded per consumed step.
type ActionOutcome struct {
	Kind     ActionKind             `json:"action"`
	Success  bool                   `json:"success"`
	Message  string                 `json:"message"`
	Code     ErrorCode              `json:"error_code,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Duration time.Duration          `json:"duration_ns,omitempty"`
}

// Feedback renders the outcome as the observation string appended to the
// transcript for the next decision.
func (o ActionOutcome) Feedback() string {
	status := "SUCCESS"
	if !o.Success {
		status = "FAILURE"
		if o.Code != ErrCodeNone {
			status = fmt.Sprintf("FAILURE (%s)", o.Code)
		}
	}
	return fmt.Sprintf("Action %q result: %s. %s", o.Kind, status, o.Message)
}
