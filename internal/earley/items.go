// Package earley implements the incremental Earley chart parser described in
// §4.3: an ordered sequence of rows, each a set of [production, dot, origin]
// items, exposing scan/force_bytes/get_bytes/apply_tokens and acting as the
// byte-level recognizer the token trie drives (§4.1, §4.2).
package earley

import (
	"fmt"
	"strings"

	"github.com/dekarrin/llmctl/internal/grammar"
)

// Item is a single Earley item [production, dot, origin]: dot is the number
// of body symbols already matched, origin is the row index at which this
// item's production started.
type Item struct {
	Prod   grammar.Production
	Dot    int
	Origin int
}

// AtEnd reports whether the dot is past every body symbol, i.e. the
// production is fully matched.
func (it Item) AtEnd() bool {
	return it.Dot >= len(it.Prod.Body)
}

// NextSymbol returns the symbol immediately after the dot and true, or the
// zero Symbol and false if AtEnd.
func (it Item) NextSymbol() (grammar.Symbol, bool) {
	if it.AtEnd() {
		return grammar.Symbol{}, false
	}
	return it.Prod.Body[it.Dot], true
}

// Advance returns a copy of it with the dot moved one position to the right.
func (it Item) Advance() Item {
	it.Dot++
	return it
}

func (it Item) String() string {
	parts := make([]string, 0, len(it.Prod.Body)+1)
	for i, s := range it.Prod.Body {
		if i == it.Dot {
			parts = append(parts, "•")
		}
		parts = append(parts, s.String())
	}
	if it.Dot == len(it.Prod.Body) {
		parts = append(parts, "•")
	}
	body := ""
	for i, p := range parts {
		if i > 0 {
			body += " "
		}
		body += p
	}
	return fmt.Sprintf("[%s -> %s, %d]", it.Prod.Head, body, it.Origin)
}

// itemSet is an insertion-ordered, deduplicated set of items: Earley's inner
// loop relies on being able to both append new items discovered mid-iteration
// and test membership cheaply. Item embeds a production whose Body is a
// slice, so it isn't map-key comparable on its own; dedup keys on a string
// rendering instead.
type itemSet struct {
	items []Item
	index map[string]struct{}
}

func newItemSet() *itemSet {
	return &itemSet{index: make(map[string]struct{})}
}

// key renders the identity-relevant fields of an item: head, body shape,
// dot and origin. Two items with equal productions by value (even from
// different Production instances) collide here, which is exactly the
// dedup behavior Earley's algorithm requires.
func itemKey(it Item) string {
	var b strings.Builder
	b.WriteString(it.Prod.Head)
	b.WriteByte('|')
	for _, s := range it.Prod.Body {
		b.WriteString(s.String())
		b.WriteByte(',')
	}
	fmt.Fprintf(&b, "|%d|%d", it.Dot, it.Origin)
	return b.String()
}

// add inserts it if not already present, returning true if it was new.
func (s *itemSet) add(it Item) bool {
	k := itemKey(it)
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = struct{}{}
	s.items = append(s.items, it)
	return true
}

func (s *itemSet) len() int {
	return len(s.items)
}

// copy returns an independent itemSet with the same contents, used by
// Parser.Fork to give a forked parser rows of its own (Snapshot/Restore
// need no copies: they only truncate the row list).
func (s *itemSet) copy() *itemSet {
	c := newItemSet()
	c.items = append(c.items, s.items...)
	for k := range s.index {
		c.index[k] = struct{}{}
	}
	return c
}
