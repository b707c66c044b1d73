// Package guard detects unproductive repetition: the same action against
// the same target failing over and over.
package guard

import (
	"fmt"

	"github.com/droverhq/drover-cli/api/schemas"
)

// Signature is the behavioral fingerprint of one executed step.
type Signature struct {
	Kind    schemas.ActionKind
	Target  string
	Success bool
}

// NewSignature derives a signature from a decision and its outcome.
func NewSignature(d schemas.ActionDecision, success bool) Signature {
	return Signature{Kind: d.Kind, Target: d.NormalizedTarget(), Success: success}
}

// Guard keeps a sliding window of the most recent step signatures and
// fires when the window fills with identical failures. Successful steps
// never trip the guard, and neither do failures spread across distinct
// targets.
type Guard struct {
	window int
	recent []Signature
}

// New creates a guard with the given window size. Sizes below 2 are
// clamped to 2; a single failure is never a loop.
func New(window int) *Guard {
	if window < 2 {
		window = 2
	}
	return &Guard{window: window}
}

// Record appends a step signature and reports whether it completes a
// loop. On detection the returned error carries FailureLoopDetected and
// the guard resets, so a caller that chooses to continue starts a fresh
// window.
func (g *Guard) Record(sig Signature) error {
	g.recent = append(g.recent, sig)
	if len(g.recent) > g.window {
		g.recent = g.recent[len(g.recent)-g.window:]
	}
	if len(g.recent) < g.window {
		return nil
	}
	head := g.recent[0]
	if head.Success {
		return nil
	}
	for _, s := range g.recent[1:] {
		if s != head {
			return nil
		}
	}
	g.recent = nil
	return schemas.NewAgentError(
		schemas.FailureLoopDetected,
		fmt.Sprintf("action %q on target %q failed %d times in a row", head.Kind, head.Target, g.window),
		nil,
	)
}

// Reset clears the window, e.g. after a navigation that invalidates
// element targets.
func (g *Guard) Reset() { g.recent = nil }
