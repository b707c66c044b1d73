package llm

import (
	"fmt"
	"strings"

	"github.com/droverhq/drover-cli/api/schemas"
)

// actionUsage documents each action for the decision model.
var actionUsage = map[schemas.ActionKind]string{
	schemas.ActionNavigate:       `{"url": "https://..."} - load a URL`,
	schemas.ActionClickElement:   `{"element_id": N} - click the numbered element`,
	schemas.ActionTypeText:       `{"element_id": N, "text": "...", "press_enter": false} - type into the numbered element`,
	schemas.ActionSelectOption:   `{"element_id": N, "value": "..."} - choose an option in a dropdown`,
	schemas.ActionScrollPage:     `{"direction": "down"} - scroll the page up or down`,
	schemas.ActionTakeScreenshot: `{} - capture the current viewport`,
	schemas.ActionWait:           `{"seconds": 2} - pause for dynamic content`,
	schemas.ActionGoBack:         `{} - browser history back`,
	schemas.ActionQueryDOM:       `{"query": "keywords"} - search the page text for keywords`,
	schemas.ActionStoreContext:   `{"key": "...", "value": ...} or any field map - remember data for the final result`,
	schemas.ActionUploadFile:     `{"element_id": N, "file_path": "/path"} - attach a file to a file input`,
	schemas.ActionDone:           `{"summary": "...", "success": false} - finish the task; set success to false only when the goal was not met`,
}

// BuildSystemPrompt renders the pinned system framing for a task.
func BuildSystemPrompt(task schemas.Task) string {
	var b strings.Builder
	b.WriteString("You are an autonomous web agent. You control a real browser one action at a time.\n\n")
	fmt.Fprintf(&b, "Your objective: %s\n\n", task.Goal)
	b.WriteString("After every action you receive an observation: the current URL, a numbered list of interactive elements and a sample of the page text. ")
	b.WriteString("Element numbers are only valid for the observation they appear in.\n\n")
	b.WriteString("Available actions:\n")
	for _, kind := range schemas.AllActionKinds {
		fmt.Fprintf(&b, "- %s: %s\n", kind, actionUsage[kind])
	}
	b.WriteString("\nRespond with exactly one JSON object and nothing else:\n")
	b.WriteString(`{"thought": "your reasoning", "tool": "<action name>", "args": {...}}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- One action per response.\n")
	b.WriteString("- Use element_id numbers from the latest observation only.\n")
	b.WriteString("- If an action keeps failing, try a different element or approach.\n")
	b.WriteString("- Use store_context to save any data the objective asks you to collect.\n")
	b.WriteString("- When the objective is complete (or impossible), use done with an honest summary.\n")
	return b.String()
}

// correctivePrompt is sent once when the model's output cannot be parsed
// into a valid decision.
func correctivePrompt(parseErr error) string {
	return fmt.Sprintf(
		"Your previous response was not a valid action (%v). Respond with exactly one JSON object of the form "+
			`{"thought": "...", "tool": "<action name>", "args": {...}} and no other text.`, parseErr)
}
