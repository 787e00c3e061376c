// Package history bounds the size of an accumulating conversation transcript
// while preserving the messages that matter most for downstream selection:
// the latest directive and the most recent tool call/result pairs. Compaction
// is a pure function with no side effects.
package history

import (
	"sort"

	"github.com/taskweave/taskweave/core"
)

// DefaultPairWindow is the number of most recent tool call/result pairs
// retained intact during compaction.
const DefaultPairWindow = 3

// Option customizes a Compactor.
type Option func(*Compactor)

// WithPairWindow overrides the retained tool pair window.
func WithPairWindow(n int) Option {
	return func(c *Compactor) {
		if n >= 0 {
			c.pairWindow = n
		}
	}
}

// Compactor applies the retention policy. The zero-cost construction makes it
// cheap to share; Compact is safe for concurrent use.
type Compactor struct {
	pairWindow int
}

// NewCompactor creates a Compactor with the default pair window.
func NewCompactor(opts ...Option) *Compactor {
	c := &Compactor{pairWindow: DefaultPairWindow}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compact applies the default policy. Shorthand for NewCompactor().Compact.
func Compact(t core.Transcript, maxEntries int) core.Transcript {
	return NewCompactor().Compact(t, maxEntries)
}

// Compact returns a transcript of at most maxEntries messages, preserving
// original order. Retention priority:
//
//  1. the single most recent directive message
//  2. the most recent pairWindow tool call/result pairs, kept intact — a
//     pair is never split, since a dangling call confuses selection
//  3. remaining budget filled with the most recent plain messages
//
// Compact is idempotent: compacting an already-compacted transcript with the
// same budget returns it unchanged.
func (c *Compactor) Compact(t core.Transcript, maxEntries int) core.Transcript {
	if maxEntries <= 0 {
		return core.Transcript{}
	}
	if len(t) <= maxEntries {
		return t
	}

	keep := make(map[int]bool, maxEntries)
	budget := maxEntries

	if idx := lastDirectiveIndex(t); idx >= 0 {
		keep[idx] = true
		budget--
	}

	// Matched call/result pairs, newest first by result position.
	kept := 0
	for _, p := range matchedPairs(t) {
		if kept >= c.pairWindow || budget < 2 {
			break
		}
		keep[p.call] = true
		keep[p.result] = true
		budget -= 2
		kept++
	}

	// Fill the rest with the newest plain messages.
	for i := len(t) - 1; i >= 0 && budget > 0; i-- {
		if keep[i] || !t[i].IsChat() {
			continue
		}
		keep[i] = true
		budget--
	}

	indices := make([]int, 0, len(keep))
	for i := range keep {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	out := make(core.Transcript, 0, len(indices))
	for _, i := range indices {
		out = append(out, t[i])
	}
	return out
}

func lastDirectiveIndex(t core.Transcript) int {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].IsDirective() {
			return i
		}
	}
	return -1
}

type pair struct {
	call, result int
}

// matchedPairs returns call/result index pairs linked by function call ID,
// newest result first. Unmatched tool messages are not reported; they are
// dropped by compaction rather than risking a dangling half.
func matchedPairs(t core.Transcript) []pair {
	callIdx := make(map[string]int)
	for i, m := range t {
		if m.IsToolCall() {
			callIdx[m.FunctionCall.ID] = i
		}
	}
	var pairs []pair
	for i := len(t) - 1; i >= 0; i-- {
		m := t[i]
		if !m.IsToolResult() {
			continue
		}
		if ci, ok := callIdx[m.FunctionResponse.ID]; ok {
			pairs = append(pairs, pair{call: ci, result: i})
		}
	}
	return pairs
}
