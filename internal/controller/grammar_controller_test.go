package controller

import (
	"context"
	"testing"

	"github.com/dekarrin/llmctl/internal/demo"
	"github.com/dekarrin/llmctl/internal/grammar"
	"github.com/dekarrin/llmctl/internal/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDemoController(t *testing.T) (*GrammarController, VarStore) {
	t.Helper()
	trie, eosID, err := demo.Vocab()
	require.NoError(t, err)
	g, err := grammar.Optimize(demo.Grammar())
	require.NoError(t, err)
	tok := tokenizer.Greedy{Trie: trie}
	vars := NewMapVarStore()
	c := NewGrammarController(trie, g, tok, vars).WithEOS(eosID)
	return c, vars
}

func TestGrammarControllerInitPromptBuildsParser(t *testing.T) {
	c, _ := newDemoController(t)
	_, err := c.InitPrompt(context.Background(), InitPromptArg{Prompt: ""})
	require.NoError(t, err)
	assert.NotNil(t, c.tp)
}

func TestGrammarControllerPreProcessContinuesByDefault(t *testing.T) {
	c, _ := newDemoController(t)
	res, err := c.PreProcess(context.Background(), PreProcessArg{})
	require.NoError(t, err)
	assert.False(t, res.Suspend)
	assert.Len(t, res.AttentionMasks, 1)
}

func TestGrammarControllerPreProcessSuspendsWhenVarStoreSaysSo(t *testing.T) {
	c, vars := newDemoController(t)
	vars.Set("suspend", "1")

	res, err := c.PreProcess(context.Background(), PreProcessArg{})
	require.NoError(t, err)
	assert.True(t, res.Suspend)
}

func TestGrammarControllerMidProcessWithNoTokensYieldsABias(t *testing.T) {
	c, _ := newDemoController(t)
	_, err := c.InitPrompt(context.Background(), InitPromptArg{})
	require.NoError(t, err)

	res, err := c.MidProcess(context.Background(), MidProcessArg{})
	require.NoError(t, err)
	assert.NotNil(t, res.Allowed)
}

func TestGrammarControllerForkSharesVarStoreAndGrammar(t *testing.T) {
	c, vars := newDemoController(t)
	_, err := c.InitPrompt(context.Background(), InitPromptArg{})
	require.NoError(t, err)

	child := c.Fork().(*GrammarController)
	assert.Same(t, c.grm, child.grm)
	assert.Same(t, c.trie, child.trie)

	vars.Set("shared", "yes")
	v, ok := child.vars.Get("shared")
	require.True(t, ok)
	assert.Equal(t, "yes", v)
}
