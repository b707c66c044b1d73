package schemas

import (
	"fmt"
	"strings"
)

// RawSnapshot is the unprocessed page state captured from the browser
// before indexing.
type RawSnapshot struct {
	URL   string
	Title string
	HTML  string
}

// ElementDescriptor is one interactive page element in a bounded,
// deterministic observation. ID is the positional index the decision
// model addresses; Selector is the XPath used to act on the element.
type ElementDescriptor struct {
	ID           int    `json:"id"`
	Tag          string `json:"tag"`
	Label        string `json:"label"`
	Selector     string `json:"selector"`
	Visible      bool   `json:"visible"`
	Interactable bool   `json:"interactable"`
}

// Describe renders the descriptor as one observation line, e.g.
//
//	[3] <input> "Search query"
func (e ElementDescriptor) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] <%s>", e.ID, e.Tag)
	if e.Label != "" {
		fmt.Fprintf(&b, " %q", e.Label)
	}
	if !e.Interactable {
		b.WriteString(" (static)")
	}
	return b.String()
}

// ObservationState is one complete observation of the environment:
// location, the indexed element list and a bounded sample of the page
// text.
type ObservationState struct {
	URL        string              `json:"url"`
	Title      string              `json:"title"`
	Elements   []ElementDescriptor `json:"elements"`
	TextSample string              `json:"text_sample,omitempty"`
	Truncated  bool                `json:"truncated,omitempty"`
}

// ValidID reports whether id addresses an element of this observation.
func (s *ObservationState) ValidID(id int) bool {
	return id >= 0 && id < len(s.Elements)
}

// Element returns the descriptor for id. Callers must check ValidID first.
func (s *ObservationState) Element(id int) ElementDescriptor {
	return s.Elements[id]
}

// Summary renders the observation as the text block handed to the
// decision model.
func (s *ObservationState) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current URL: %s\n", s.URL)
	if s.Title != "" {
		fmt.Fprintf(&b, "Page title: %s\n", s.Title)
	}
	if len(s.Elements) == 0 {
		b.WriteString("No interactive elements found on this page.\n")
	} else {
		fmt.Fprintf(&b, "Interactive elements (%d", len(s.Elements))
		if s.Truncated {
			b.WriteString(", truncated")
		}
		b.WriteString("):\n")
		for _, el := range s.Elements {
			b.WriteString(el.Describe())
			b.WriteByte('\n')
		}
	}
	if s.TextSample != "" {
		fmt.Fprintf(&b, "Visible text sample:\n%s\n", s.TextSample)
	}
	return b.String()
}
