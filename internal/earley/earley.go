package earley

import (
	"fmt"
	"strings"

	"github.com/dekarrin/llmctl/internal/grammar"
	"github.com/dekarrin/llmctl/internal/toktrie"
)

// ScanResult is the outcome of scanning one byte against the current row.
type ScanResult int

const (
	// Reject means the byte is not admissible in the current row; the chart
	// is left unchanged.
	Reject ScanResult = iota
	// Accept means the byte extended the chart with a new row.
	Accept
	// EndOfInput means the start symbol can already be completed in the
	// current row and no further input is strictly required, though more
	// may still be Accepted.
	EndOfInput
)

func (r ScanResult) String() string {
	switch r {
	case Accept:
		return "Accept"
	case EndOfInput:
		return "EndOfInput"
	default:
		return "Reject"
	}
}

// Parser is an incremental Earley chart parser over a single compiled
// grammar (§4.3). Row 0 is the closure of the start symbol; row n summarizes
// every parse of the first n input bytes. It is not safe for concurrent use;
// callers needing parallel speculation should Snapshot/Restore or fork via
// the controller layer instead.
type Parser struct {
	g    *grammar.Grammar
	rows []*itemSet

	// allBytes accumulates every byte Scan has Accepted since row 0: the
	// byte string produced by the parser so far for the current generation
	// (§4.3's GetBytes). It is never reset mid-generation; callers compare
	// successive GetBytes snapshots themselves if they need a delta.
	allBytes []byte
}

// NewParser builds a parser over g, seeded with the closure of g's start
// symbol at row 0. Returns an error if g fails Validate.
func NewParser(g *grammar.Grammar) (*Parser, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("earley: %w", err)
	}
	p := &Parser{g: g}
	row0 := newItemSet()
	for _, prod := range g.RulesFor(g.Start) {
		row0.add(Item{Prod: prod, Dot: 0, Origin: 0})
	}
	closeRow(row0, g, 0)
	p.rows = []*itemSet{row0}
	return p, nil
}

// RowCount is the number of rows in the chart, i.e. 1 + the number of bytes
// accepted so far.
func (p *Parser) RowCount() int {
	return len(p.rows)
}

// closeRow runs predict+complete to a fixpoint over row i (scan happens
// separately, driven by the byte being scanned). Mirrors the classic
// Earley inner loop: a worklist over the row's own item list, onto which
// predict/complete may append more items as they're discovered.
func closeRow(row *itemSet, g *grammar.Grammar, i int, priorRows ...*itemSet) {
	for idx := 0; idx < row.len(); idx++ {
		item := row.items[idx]
		sym, ok := item.NextSymbol()
		if !ok {
			completeRow(row, item, priorRows)
			continue
		}
		if sym.IsTerminal {
			continue
		}
		for _, prod := range g.RulesFor(sym.NonTerminal) {
			row.add(Item{Prod: prod, Dot: 0, Origin: i})
		}
		if isNullable(g, sym.NonTerminal) {
			row.add(item.Advance())
		}
	}
}

// completeRow implements the Completer step for an item whose dot has
// reached the end of its body: every item in the origin row waiting on this
// nonterminal advances into the current row.
func completeRow(row *itemSet, completed Item, priorRows []*itemSet) {
	var origin *itemSet
	if completed.Origin == len(priorRows) {
		origin = row // completed within the same row it started (nullable chain)
	} else if completed.Origin < len(priorRows) {
		origin = priorRows[completed.Origin]
	} else {
		return
	}
	for _, waiting := range origin.items {
		sym, ok := waiting.NextSymbol()
		if !ok || sym.IsTerminal || sym.NonTerminal != completed.Prod.Head {
			continue
		}
		row.add(waiting.Advance())
	}
}

// isNullable reports whether nonterminal name has at least one production
// whose body is empty or made entirely of nullable nonterminals. Grammars
// fed to the parser are expected to have already gone through
// grammar.Optimize, which inlines most directly-nullable alternatives, but
// the predictor still needs this to handle nullable chains and grammars used
// unoptimized (tests do both).
func isNullable(g *grammar.Grammar, name string) bool {
	seen := map[string]bool{}
	var visit func(n string) bool
	visit = func(n string) bool {
		if seen[n] {
			return false
		}
		seen[n] = true
		for _, prod := range g.RulesFor(n) {
			ok := true
			for _, s := range prod.Body {
				if s.IsTerminal {
					ok = false
					break
				}
				if !visit(s.NonTerminal) {
					ok = false
					break
				}
			}
			if ok {
				return true
			}
		}
		return false
	}
	return visit(name)
}

// Scan advances the chart by one byte. Accept appends a new row; Reject
// leaves the chart unchanged; EndOfInput means b was not admissible either
// (the chart is left unchanged, as for Reject) but the start symbol is
// already completable in the current row.
func (p *Parser) Scan(b byte) ScanResult {
	endOfInput := p.completable()

	cur := p.rows[len(p.rows)-1]
	next := newItemSet()
	for _, item := range cur.items {
		sym, ok := item.NextSymbol()
		if !ok || !sym.IsTerminal || !sym.Matches(b) {
			continue
		}
		next.add(item.Advance())
	}
	if next.len() == 0 {
		if endOfInput {
			return EndOfInput
		}
		return Reject
	}

	closeRow(next, p.g, len(p.rows), p.rows...)
	p.rows = append(p.rows, next)
	p.allBytes = append(p.allBytes, b)
	return Accept
}

// completable reports whether the start symbol has a fully-dotted item in
// the current row, i.e. the input seen so far is already a complete parse.
func (p *Parser) completable() bool {
	cur := p.rows[len(p.rows)-1]
	for _, item := range cur.items {
		if item.AtEnd() && item.Prod.Head == p.g.Start && item.Origin == 0 {
			return true
		}
	}
	return false
}

// admissibleBytes returns the set of terminal bytes that would Scan-Accept
// from the current row, used by ForceBytes to detect a singleton
// continuation.
func (p *Parser) admissibleBytes() map[byte]bool {
	cur := p.rows[len(p.rows)-1]
	out := make(map[byte]bool)
	for _, item := range cur.items {
		sym, ok := item.NextSymbol()
		if !ok || !sym.IsTerminal {
			continue
		}
		if sym.Class.Match != nil {
			for b := 0; b < 256; b++ {
				if sym.Matches(byte(b)) {
					out[byte(b)] = true
				}
			}
			continue
		}
		out[sym.Byte] = true
	}
	return out
}

// ForceBytes repeatedly scans whenever exactly one terminal byte is
// admissible in the current row, and returns GetBytes afterward (§4.3). It
// stops as soon as zero or more than one byte is admissible, or when the
// start symbol is already completable (ending the input there is then a
// second continuation alongside the one admissible byte).
func (p *Parser) ForceBytes() []byte {
	for {
		admissible := p.admissibleBytes()
		if len(admissible) != 1 || p.completable() {
			break
		}
		var only byte
		for b := range admissible {
			only = b
		}
		if p.Scan(only) != Accept {
			break
		}
	}
	return p.GetBytes()
}

// GetBytes returns the byte string produced by the parser so far for the
// current generation (§4.3): every byte Scan has Accepted since row 0. It is
// a read-only snapshot; callers compute their own deltas across calls.
func (p *Parser) GetBytes() []byte {
	return append([]byte(nil), p.allBytes...)
}

// ApplyTokens feeds the byte decoding of llmTokens into the parser, stopping
// at the first Reject. llmTokens is the full, cumulative token-id stream the
// host believes is committed (§4.4 step 1 calls this with the running
// llm_tokens, not just the newly observed tokens); ApplyTokens skips the
// prefix already represented by the chart's existing rows and scans only
// the remainder, so repeated calls across steps are cheap and idempotent.
// Returns "" on full acceptance; otherwise a human-readable description of
// the rejected position. It does not roll back partial progress (§4.3): a
// non-empty result is a fatal mismatch for the calling sequence.
func (p *Parser) ApplyTokens(trie *toktrie.TokTrie, llmTokens []toktrie.TokenId) string {
	decoded, err := trie.Decode(llmTokens)
	if err != nil {
		return fmt.Sprintf("apply_tokens: %s", err)
	}
	already := len(p.rows) - 1
	if already > len(decoded) {
		return fmt.Sprintf("apply_tokens: llm_tokens decoded to %d bytes, fewer than the %d already committed", len(decoded), already)
	}
	for i := already; i < len(decoded); i++ {
		b := decoded[i]
		if p.Scan(b) != Accept {
			return fmt.Sprintf("apply_tokens: byte %d (%q) rejected at row %d", i, b, len(p.rows)-1)
		}
	}
	return ""
}

// --- Recognizer adaptation --------------------------------------------
//
// Parser implements recognizer.Snapshottable (ByteAllowed, SpecialAllowed,
// Append, Snapshot, Restore). It does not implement toktrie.StackRecognizer
// directly: callers wrap it with recognizer.NewStack(parser) to get the
// Push/Pop discipline the trie traversal requires, reusing row-count
// snapshots instead of a parallel undo stack (§9 "grammar parsers prefer
// (a) for chart efficiency").

// ByteAllowed implements toktrie.Recognizer/recognizer.Snapshottable by
// speculatively scanning b and reporting whether it would Accept, without
// mutating the chart (callers drive the actual mutation via Push/Append).
func (p *Parser) ByteAllowed(b byte) bool {
	cur := p.rows[len(p.rows)-1]
	for _, item := range cur.items {
		sym, ok := item.NextSymbol()
		if ok && sym.IsTerminal && sym.Matches(b) {
			return true
		}
	}
	return false
}

// SpecialAllowed reports whether a special token may be emitted in the
// current row: the grammar layer has no notion of special tokens distinct
// from end-of-input, so this holds only for EOS once the start symbol is
// completable.
func (p *Parser) SpecialAllowed(_ toktrie.TokenId, kind toktrie.SpecialKind) bool {
	return kind == toktrie.SpecialEOS && p.completable()
}

// Append commits byte b to the chart, matching toktrie.Recognizer's
// interface. Panics if b is not ByteAllowed: callers (the trie traversal,
// the Stack wrapper) only ever Append a byte they just confirmed.
func (p *Parser) Append(b byte) {
	if p.Scan(b) != Accept {
		panic(fmt.Sprintf("earley: Append called with disallowed byte %q", b))
	}
}

// Snapshot returns the current row count, the cheapest possible mark: Scan
// only ever appends rows, so Restore just truncates back to it.
func (p *Parser) Snapshot() interface{} {
	return len(p.rows)
}

// Restore truncates the chart back to the row count captured by Snapshot.
// Row count n implies n-1 accepted bytes, so allBytes is truncated in
// lockstep: otherwise speculative Push/Pop traversal (the trie's
// compute_bias walk, has_valid_extensions) would leave phantom bytes behind
// in GetBytes after an unmatched subtree is explored and abandoned.
func (p *Parser) Restore(mark interface{}) {
	n := mark.(int)
	p.rows = p.rows[:n]
	p.allBytes = p.allBytes[:n-1]
}

// Fork returns an independent copy of the parser sharing no mutable state
// with p, for the controller's fork lifecycle (§4.5). Rows are
// path-copied: the grammar itself (read-only) is shared.
func (p *Parser) Fork() *Parser {
	f := &Parser{g: p.g}
	f.rows = make([]*itemSet, len(p.rows))
	for i, r := range p.rows {
		f.rows[i] = r.copy()
	}
	f.allBytes = append([]byte(nil), p.allBytes...)
	return f
}

// DebugRow renders row i as a multi-line string of its items, for REPL
// inspection tooling.
func (p *Parser) DebugRow(i int) string {
	if i < 0 || i >= len(p.rows) {
		return ""
	}
	var b strings.Builder
	for _, item := range p.rows[i].items {
		b.WriteString(item.String())
		b.WriteByte('\n')
	}
	return b.String()
}
