// Package dom turns a raw HTML snapshot into a bounded, deterministic
// observation: an indexed list of interactive elements plus a sample of
// the visible page text. Determinism matters because element IDs are how
// the decision model addresses the page; the same snapshot must always
// produce the same IDs.
package dom

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/droverhq/drover-cli/api/schemas"
	"github.com/droverhq/drover-cli/internal/config"
)

// interactiveTags are element names considered inherently interactive.
var interactiveTags = map[string]struct{}{
	"a":        {},
	"button":   {},
	"input":    {},
	"select":   {},
	"textarea": {},
	"summary":  {},
	"label":    {},
}

// prunedTags subtrees carry no user-facing content.
var prunedTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
	"head":     {},
	"svg":      {},
	"iframe":   {},
}

// interactiveRoles mark non-native elements wired up as controls.
var interactiveRoles = map[string]struct{}{
	"button":   {},
	"link":     {},
	"checkbox": {},
	"radio":    {},
	"tab":      {},
	"menuitem": {},
	"option":   {},
	"textbox":  {},
	"combobox": {},
	"switch":   {},
}

// Indexer builds observations from raw snapshots.
type Indexer struct {
	maxElements   int
	maxLabelRunes int
	maxSampleRune int
	logger        *zap.Logger
}

// NewIndexer creates an indexer bounded by the agent configuration.
func NewIndexer(cfg config.AgentConfig, logger *zap.Logger) *Indexer {
	return &Indexer{
		maxElements:   cfg.MaxElements,
		maxLabelRunes: cfg.MaxElementText,
		maxSampleRune: cfg.MaxTextSample,
		logger:        logger.Named("indexer"),
	}
}

type candidate struct {
	node         *html.Node
	order        int
	visible      bool
	interactable bool
}

// band orders candidates for the cap: usable elements first, then merely
// visible ones, then the rest. Document order breaks ties.
func (c candidate) band() int {
	switch {
	case c.visible && c.interactable:
		return 0
	case c.visible:
		return 1
	default:
		return 2
	}
}

// Index parses the snapshot and produces the observation handed to the
// decision model. An empty element list is a valid observation.
func (ix *Indexer) Index(snap schemas.RawSnapshot) (*schemas.ObservationState, error) {
	root, err := html.Parse(strings.NewReader(snap.HTML))
	if err != nil {
		return nil, fmt.Errorf("parsing DOM snapshot: %w", err)
	}

	var (
		candidates []candidate
		order      int
		sample     strings.Builder
	)
	var walk func(n *html.Node, hiddenAncestor bool)
	walk = func(n *html.Node, hiddenAncestor bool) {
		if n.Type == html.ElementNode {
			tag := strings.ToLower(n.Data)
			if _, pruned := prunedTags[tag]; pruned {
				return
			}
			hidden := hiddenAncestor || isHidden(n)
			if isInteractiveElement(n) {
				candidates = append(candidates, candidate{
					node:         n,
					order:        order,
					visible:      !hidden,
					interactable: !hidden && !isDisabled(n),
				})
				order++
			}
			hiddenAncestor = hidden
		}
		if n.Type == html.TextNode && !hiddenAncestor {
			if text := collapseSpace(n.Data); text != "" {
				if sample.Len() > 0 {
					sample.WriteByte('\n')
				}
				sample.WriteString(text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, hiddenAncestor)
		}
	}
	walk(root, false)

	sort.SliceStable(candidates, func(i, j int) bool {
		bi, bj := candidates[i].band(), candidates[j].band()
		if bi != bj {
			return bi < bj
		}
		return candidates[i].order < candidates[j].order
	})

	truncated := false
	if len(candidates) > ix.maxElements {
		candidates = candidates[:ix.maxElements]
		truncated = true
	}

	elements := make([]schemas.ElementDescriptor, len(candidates))
	for i, c := range candidates {
		elements[i] = schemas.ElementDescriptor{
			ID:           i,
			Tag:          strings.ToLower(c.node.Data),
			Label:        truncateRunes(elementLabel(c.node), ix.maxLabelRunes),
			Selector:     generateXPath(c.node),
			Visible:      c.visible,
			Interactable: c.interactable,
		}
	}

	obs := &schemas.ObservationState{
		URL:        snap.URL,
		Title:      snap.Title,
		Elements:   elements,
		TextSample: truncateRunes(sample.String(), ix.maxSampleRune),
		Truncated:  truncated,
	}
	ix.logger.Debug("Indexed page snapshot",
		zap.String("url", snap.URL),
		zap.Int("elements", len(elements)),
		zap.Bool("truncated", truncated))
	return obs, nil
}

func isInteractiveElement(n *html.Node) bool {
	tag := strings.ToLower(n.Data)
	if _, ok := interactiveTags[tag]; ok {
		return true
	}
	if role := strings.ToLower(attr(n, "role")); role != "" {
		if _, ok := interactiveRoles[role]; ok {
			return true
		}
	}
	if hasAttr(n, "onclick") || hasAttr(n, "contenteditable") {
		return true
	}
	return false
}

func isHidden(n *html.Node) bool {
	if hasAttr(n, "hidden") {
		return true
	}
	if strings.EqualFold(attr(n, "aria-hidden"), "true") {
		return true
	}
	if strings.EqualFold(n.Data, "input") && strings.EqualFold(attr(n, "type"), "hidden") {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(attr(n, "style")), " ", "")
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return true
	}
	return false
}

func isDisabled(n *html.Node) bool {
	if hasAttr(n, "disabled") {
		return true
	}
	if strings.EqualFold(attr(n, "aria-disabled"), "true") {
		return true
	}
	if hasAttr(n, "readonly") {
		return true
	}
	return false
}

// elementLabel extracts the best human-readable description of a control:
// its rendered text, else the most descriptive attribute.
func elementLabel(n *html.Node) string {
	if text := collapseSpace(innerText(n)); text != "" {
		return text
	}
	for _, name := range []string{"aria-label", "placeholder", "value", "title", "alt", "name"} {
		if v := strings.TrimSpace(attr(n, name)); v != "" {
			return v
		}
	}
	if strings.EqualFold(n.Data, "a") {
		return strings.TrimSpace(attr(n, "href"))
	}
	return ""
}

func innerText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
			b.WriteByte(' ')
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
