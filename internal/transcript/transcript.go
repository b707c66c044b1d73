// Package transcript maintains the agent's conversation history and the
// bounded prompt window derived from it: the pinned system entry plus the
// most recent entries.
package transcript

import (
	"time"

	"github.com/droverhq/drover-cli/api/schemas"
)

// Transcript is an append-only conversation log. The first entry is the
// pinned system framing; it is never evicted from the prompt window.
type Transcript struct {
	system  schemas.TranscriptEntry
	entries []schemas.TranscriptEntry
	clock   func() time.Time
}

// New creates a transcript pinned to the given system framing.
func New(systemPrompt string) *Transcript {
	t := &Transcript{clock: time.Now}
	t.system = schemas.TranscriptEntry{
		Role:      schemas.RoleSystem,
		Content:   systemPrompt,
		Timestamp: t.clock(),
	}
	return t
}

// Append records one entry at the end of the history.
func (t *Transcript) Append(role schemas.Role, content string) {
	t.entries = append(t.entries, schemas.TranscriptEntry{
		Role:      role,
		Content:   content,
		Timestamp: t.clock(),
	})
}

// Window returns the prompt window: the pinned system entry followed by
// the last size non-system entries, oldest first. A non-positive size
// yields just the system entry. The returned slice is freshly allocated.
func (t *Transcript) Window(size int) []schemas.TranscriptEntry {
	if size < 0 {
		size = 0
	}
	start := len(t.entries) - size
	if start < 0 {
		start = 0
	}
	window := make([]schemas.TranscriptEntry, 0, len(t.entries)-start+1)
	window = append(window, t.system)
	window = append(window, t.entries[start:]...)
	return window
}

// Entries returns a copy of the full history including the system entry,
// for persistence.
func (t *Transcript) Entries() []schemas.TranscriptEntry {
	all := make([]schemas.TranscriptEntry, 0, len(t.entries)+1)
	all = append(all, t.system)
	all = append(all, t.entries...)
	return all
}

// Len reports the number of non-system entries recorded so far.
func (t *Transcript) Len() int { return len(t.entries) }
