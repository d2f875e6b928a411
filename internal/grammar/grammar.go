// Package grammar holds the context-free grammar representation the Earley
// parser operates on: productions over byte and byte-class terminals, and
// the optimize/compile passes §4.3 requires before a grammar is handed to
// the parser.
package grammar

import (
	"fmt"
	"sort"
	"strings"
)

// ByteClass is a named terminal predicate, e.g. "DIGIT" or "ALPHA". Two
// ByteClass values are considered the same class if their Name matches;
// Match is called for every byte tested against the class, both during
// Optimize and at parse time (Symbol.Matches).
type ByteClass struct {
	Name  string
	Match func(b byte) bool
}

// Symbol is one element of a production's right-hand side: either a
// nonterminal reference (NonTerminal non-empty) or a terminal (IsTerminal).
// A terminal is either a single byte or a byte-class predicate (§4.3).
type Symbol struct {
	NonTerminal string
	IsTerminal  bool
	Byte        byte
	Class       ByteClass // IsTerminal && Class.Match != nil
	hasByte     bool
}

// T builds a single-byte terminal symbol.
func T(b byte) Symbol {
	return Symbol{IsTerminal: true, Byte: b, hasByte: true}
}

// TClass builds a byte-class terminal symbol.
func TClass(c ByteClass) Symbol {
	return Symbol{IsTerminal: true, Class: c}
}

// NT builds a nonterminal reference symbol.
func NT(name string) Symbol {
	return Symbol{NonTerminal: name}
}

// Matches reports whether byte b satisfies this terminal symbol. Panics if
// called on a nonterminal symbol.
func (s Symbol) Matches(b byte) bool {
	if !s.IsTerminal {
		panic("grammar: Matches called on nonterminal symbol " + s.NonTerminal)
	}
	if s.Class.Match != nil {
		return s.Class.Match(b)
	}
	return s.hasByte && s.Byte == b
}

func (s Symbol) String() string {
	if !s.IsTerminal {
		return s.NonTerminal
	}
	if s.Class.Match != nil {
		return "[" + s.Class.Name + "]"
	}
	return fmt.Sprintf("%q", string(s.Byte))
}

// Production is one rule Head -> Body. An empty Body is an epsilon
// production.
type Production struct {
	Head string
	Body []Symbol
}

func (p Production) String() string {
	parts := make([]string, len(p.Body))
	for i, s := range p.Body {
		parts[i] = s.String()
	}
	if len(parts) == 0 {
		return p.Head + " -> ε"
	}
	return p.Head + " -> " + strings.Join(parts, " ")
}

// Grammar is a context-free grammar over byte/byte-class terminals: a start
// symbol and a set of productions grouped by head.
type Grammar struct {
	Start string
	rules map[string][]Production
	order []string // insertion order of heads, for deterministic iteration
}

// New creates an empty grammar with the given start symbol.
func New(start string) *Grammar {
	return &Grammar{Start: start, rules: make(map[string][]Production)}
}

// AddRule appends a production Head -> Body.
func (g *Grammar) AddRule(head string, body ...Symbol) {
	if _, ok := g.rules[head]; !ok {
		g.order = append(g.order, head)
	}
	g.rules[head] = append(g.rules[head], Production{Head: head, Body: body})
}

// RulesFor returns the productions with the given head, in the order they
// were added.
func (g *Grammar) RulesFor(head string) []Production {
	return g.rules[head]
}

// NonTerminals returns every nonterminal with at least one rule, in
// insertion order.
func (g *Grammar) NonTerminals() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// AllProductions returns every production in the grammar, ordered by head
// insertion order and then by rule order within a head.
func (g *Grammar) AllProductions() []Production {
	var out []Production
	for _, head := range g.order {
		out = append(out, g.rules[head]...)
	}
	return out
}

// Copy returns a deep-enough copy of g suitable for independent mutation by
// Optimize.
func (g *Grammar) Copy() *Grammar {
	c := New(g.Start)
	for _, head := range g.order {
		rules := g.rules[head]
		copied := make([]Production, len(rules))
		for i, r := range rules {
			body := make([]Symbol, len(r.Body))
			copy(body, r.Body)
			copied[i] = Production{Head: r.Head, Body: body}
		}
		c.rules[head] = copied
		c.order = append(c.order, head)
	}
	return c
}

// Validate checks that every nonterminal referenced in a production body has
// at least one rule, and that the start symbol has at least one rule.
func (g *Grammar) Validate() error {
	if _, ok := g.rules[g.Start]; !ok {
		return fmt.Errorf("grammar: start symbol %q has no rules", g.Start)
	}
	var undefined []string
	seen := make(map[string]bool)
	for _, p := range g.AllProductions() {
		for _, s := range p.Body {
			if s.IsTerminal || s.NonTerminal == "" {
				continue
			}
			if _, ok := g.rules[s.NonTerminal]; !ok && !seen[s.NonTerminal] {
				seen[s.NonTerminal] = true
				undefined = append(undefined, s.NonTerminal)
			}
		}
	}
	if len(undefined) > 0 {
		sort.Strings(undefined)
		return fmt.Errorf("grammar: undefined nonterminal(s) referenced: %s", strings.Join(undefined, ", "))
	}
	return nil
}
