package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digitClass() ByteClass {
	return ByteClass{Name: "DIGIT", Match: func(b byte) bool { return b >= '0' && b <= '9' }}
}

func TestSymbolMatches(t *testing.T) {
	a := T('a')
	assert.True(t, a.Matches('a'))
	assert.False(t, a.Matches('b'))

	d := TClass(digitClass())
	assert.True(t, d.Matches('5'))
	assert.False(t, d.Matches('x'))

	assert.Panics(t, func() { NT("X").Matches('a') })
}

func TestProductionString(t *testing.T) {
	p := Production{Head: "S", Body: []Symbol{T('a'), NT("B")}}
	assert.Equal(t, `S -> "a" B`, p.String())

	eps := Production{Head: "S", Body: nil}
	assert.Equal(t, "S -> ε", eps.String())
}

func TestGrammarValidate(t *testing.T) {
	g := New("S")
	g.AddRule("S", NT("A"), T('x'))
	g.AddRule("A", T('a'))
	require.NoError(t, g.Validate())

	bad := New("S")
	bad.AddRule("S", NT("Missing"))
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing")
}

func TestGrammarValidateMissingStart(t *testing.T) {
	g := New("S")
	err := g.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start symbol")
}

func TestGrammarCopyIsIndependent(t *testing.T) {
	g := New("S")
	g.AddRule("S", T('a'))

	c := g.Copy()
	c.AddRule("S", T('b'))

	assert.Len(t, g.RulesFor("S"), 1)
	assert.Len(t, c.RulesFor("S"), 2)
}

func TestOptimizeEliminatesDeadRules(t *testing.T) {
	g := New("S")
	g.AddRule("S", T('a'))
	g.AddRule("Unreachable", T('b'))
	g.AddRule("Unproductive", NT("NeverEnds"))
	g.AddRule("NeverEnds", NT("NeverEnds"))

	opt, err := Optimize(g)
	require.NoError(t, err)

	for _, head := range opt.NonTerminals() {
		assert.NotEqual(t, "Unreachable", head)
	}
}

func TestOptimizeInlinesNullable(t *testing.T) {
	g := New("S")
	g.AddRule("S", T('a'), NT("Opt"), T('b'))
	g.AddRule("Opt", T('c'))
	g.AddRule("Opt") // epsilon

	opt, err := Optimize(g)
	require.NoError(t, err)

	found := false
	for _, p := range opt.RulesFor("S") {
		if len(p.Body) == 2 {
			found = true
		}
	}
	assert.True(t, found, "expected an inlined 2-symbol alternative for S")
}

func TestOptimizeMergesTerminalClasses(t *testing.T) {
	g := New("S")
	for b := byte('0'); b <= '9'; b++ {
		g.AddRule("S", T(b))
	}

	opt, err := Optimize(g)
	require.NoError(t, err)

	rules := opt.RulesFor("S")
	require.Len(t, rules, 1)
	require.Len(t, rules[0].Body, 1)
	sym := rules[0].Body[0]
	assert.True(t, sym.IsTerminal)
	assert.NotNil(t, sym.Class.Match)
	for b := byte('0'); b <= '9'; b++ {
		assert.True(t, sym.Matches(b))
	}
	assert.False(t, sym.Matches('x'))
}

func TestOptimizePreservesStartAndValidity(t *testing.T) {
	g := New("S")
	g.AddRule("S", NT("A"))
	g.AddRule("A", T('a'))

	opt, err := Optimize(g)
	require.NoError(t, err)
	assert.Equal(t, "S", opt.Start)
	require.NoError(t, opt.Validate())
}
