package grammar

import (
	"fmt"

	"github.com/dekarrin/llmctl/internal/ctrlerr"
	"github.com/dekarrin/llmctl/internal/util"
)

// Optimize runs the passes §4.3 calls for before compilation: dead-rule
// elimination, epsilon-inlining for directly nullable body positions, and
// terminal-class merging of same-shape single-byte alternatives. It must
// preserve language equivalence; it returns a new Grammar and never mutates
// g.
func Optimize(g *Grammar) (*Grammar, error) {
	if err := g.Validate(); err != nil {
		return nil, ctrlerr.GrammarBuildf("%s", err.Error())
	}

	opt := g.Copy()
	eliminateDeadRules(opt)
	inlineNullableSymbols(opt)
	mergeTerminalClasses(opt)

	if err := opt.Validate(); err != nil {
		return nil, ctrlerr.GrammarBuildf("optimize produced invalid grammar: %s", err.Error())
	}
	return opt, nil
}

// eliminateDeadRules removes nonterminals unreachable from Start and
// nonterminals that can never derive any terminal string (unproductive).
func eliminateDeadRules(g *Grammar) {
	productive := computeProductive(g)
	for _, head := range g.NonTerminals() {
		kept := g.rules[head][:0:0]
		for _, p := range g.rules[head] {
			if productionIsProductive(p, productive) {
				kept = append(kept, p)
			}
		}
		g.rules[head] = kept
	}

	reachable := computeReachable(g)
	for _, head := range g.NonTerminals() {
		if !reachable[head] {
			delete(g.rules, head)
		}
	}
	filtered := g.order[:0:0]
	for _, head := range g.order {
		if _, ok := g.rules[head]; ok {
			filtered = append(filtered, head)
		}
	}
	g.order = filtered
}

func productionIsProductive(p Production, productive util.StringSet) bool {
	for _, s := range p.Body {
		if !s.IsTerminal && !productive[s.NonTerminal] {
			return false
		}
	}
	return true
}

// computeProductive finds nonterminals that can derive at least one
// terminal string, by fixpoint.
func computeProductive(g *Grammar) util.StringSet {
	productive := util.NewStringSet()
	changed := true
	for changed {
		changed = false
		for _, head := range g.NonTerminals() {
			if productive[head] {
				continue
			}
			for _, p := range g.rules[head] {
				if productionIsProductive(p, productive) {
					productive.Add(head)
					changed = true
					break
				}
			}
		}
	}
	return productive
}

// computeReachable finds nonterminals reachable from Start by following
// production bodies.
func computeReachable(g *Grammar) util.StringSet {
	reachable := util.NewStringSet()
	reachable.Add(g.Start)
	queue := []string{g.Start}
	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		for _, p := range g.rules[head] {
			for _, s := range p.Body {
				if s.IsTerminal || s.NonTerminal == "" {
					continue
				}
				if !reachable.Has(s.NonTerminal) {
					reachable.Add(s.NonTerminal)
					queue = append(queue, s.NonTerminal)
				}
			}
		}
	}
	return reachable
}

// computeNullable finds nonterminals that can derive the empty string.
func computeNullable(g *Grammar) util.StringSet {
	nullable := util.NewStringSet()
	changed := true
	for changed {
		changed = false
		for _, head := range g.NonTerminals() {
			if nullable[head] {
				continue
			}
			for _, p := range g.rules[head] {
				allNullable := true
				for _, s := range p.Body {
					if s.IsTerminal || !nullable.Has(s.NonTerminal) {
						allNullable = false
						break
					}
				}
				if allNullable {
					nullable.Add(head)
					changed = true
					break
				}
			}
		}
	}
	return nullable
}

// inlineNullableSymbols duplicates productions that contain exactly one
// nullable nonterminal in their body with that symbol removed, so the
// Earley engine sees an explicit shorter alternative instead of having to
// special-case a mid-body nullable symbol. Bodies with more than one
// nullable symbol are left as-is: Earley's own epsilon-completion handles
// them directly, just with one extra empty-production traversal per symbol.
func inlineNullableSymbols(g *Grammar) {
	nullable := computeNullable(g)

	for _, head := range g.NonTerminals() {
		var additions []Production
		for _, p := range g.rules[head] {
			nullableCount := 0
			nullableIdx := -1
			for i, s := range p.Body {
				if !s.IsTerminal && nullable[s.NonTerminal] {
					nullableCount++
					nullableIdx = i
				}
			}
			if nullableCount == 1 && len(p.Body) > 1 {
				shorter := make([]Symbol, 0, len(p.Body)-1)
				shorter = append(shorter, p.Body[:nullableIdx]...)
				shorter = append(shorter, p.Body[nullableIdx+1:]...)
				additions = append(additions, Production{Head: head, Body: shorter})
			}
		}
		g.rules[head] = append(g.rules[head], additions...)
	}
}

// mergeTerminalClasses merges runs of same-head, same-length productions
// that differ only in a single single-byte terminal position into one
// production using a byte-set class at that position, reducing the number
// of Earley items scanned per row for grammars with long literal
// alternations (digit classes, keyword-initial letters, and the like).
func mergeTerminalClasses(g *Grammar) {
	for _, head := range g.NonTerminals() {
		g.rules[head] = mergeHeadTerminalClasses(g.rules[head])
	}
}

func mergeHeadTerminalClasses(prods []Production) []Production {
	type bucketKey struct {
		length int
		shape  string
	}
	buckets := make(map[bucketKey][]int)
	for i, p := range prods {
		shape, diffPos, ok := singleByteDiffShape(p.Body)
		if !ok {
			continue
		}
		k := bucketKey{length: len(p.Body), shape: shape}
		_ = diffPos
		buckets[k] = append(buckets[k], i)
	}

	merged := make(map[int]bool)
	var out []Production
	for k, idxs := range buckets {
		if len(idxs) < 2 {
			continue
		}
		diffPos := singleByteDiffPos(prods[idxs[0]].Body)
		bytes := make(map[byte]bool)
		for _, i := range idxs {
			bytes[prods[i].Body[diffPos].Byte] = true
		}
		className := fmt.Sprintf("merged@%s#%d", k.shape, diffPos)
		cls := ByteClass{Name: className, Match: func(set map[byte]bool) func(byte) bool {
			return func(b byte) bool { return set[b] }
		}(bytes)}

		base := prods[idxs[0]]
		body := make([]Symbol, len(base.Body))
		copy(body, base.Body)
		body[diffPos] = TClass(cls)
		out = append(out, Production{Head: base.Head, Body: body})
		for _, i := range idxs {
			merged[i] = true
		}
	}
	for i, p := range prods {
		if !merged[i] {
			out = append(out, p)
		}
	}
	return out
}

// singleByteDiffShape returns a stable key describing body's shape ignoring
// the value of at most one single-byte terminal position, plus whether body
// qualifies (exactly one single-byte-terminal position, all other symbols
// identical in kind).
func singleByteDiffShape(body []Symbol) (string, int, bool) {
	diffPos := singleByteDiffPos(body)
	if diffPos < 0 {
		return "", -1, false
	}
	shape := ""
	for i, s := range body {
		if i == diffPos {
			shape += "B;"
			continue
		}
		if s.IsTerminal {
			if s.Class.Match != nil {
				shape += "C:" + s.Class.Name + ";"
			} else {
				shape += fmt.Sprintf("b:%d;", s.Byte)
			}
		} else {
			shape += "N:" + s.NonTerminal + ";"
		}
	}
	return shape, diffPos, true
}

// singleByteDiffPos returns the index of body's sole single-byte terminal
// symbol if there is exactly one, else -1. Bodies with zero or more than one
// single-byte terminal aren't candidates for merging by this simple pass.
func singleByteDiffPos(body []Symbol) int {
	pos := -1
	count := 0
	for i, s := range body {
		if s.IsTerminal && s.Class.Match == nil {
			count++
			pos = i
		}
	}
	if count != 1 {
		return -1
	}
	return pos
}
