package controller

import (
	"context"

	"github.com/dekarrin/llmctl/internal/earley"
	"github.com/dekarrin/llmctl/internal/grammar"
	"github.com/dekarrin/llmctl/internal/tokparser"
	"github.com/dekarrin/llmctl/internal/toktrie"
)

// GrammarController is the Controller implementation for the constraint
// engine's own domain: init_prompt builds a fresh earley.Parser over a
// shared, already-optimized Grammar, and mid_process delegates straight to
// tokparser.TokenParser. It implements Forkable by forking the underlying
// TokenParser and keeping the VarStore shared across the fork group, the
// copy-on-write split §4.5/§9 describe.
type GrammarController struct {
	trie      *toktrie.TokTrie
	grm       *grammar.Grammar
	tokenizer tokparser.Tokenizer
	eosID     toktrie.TokenId
	hasEOS    bool
	vars      VarStore

	tp *tokparser.TokenParser
}

// NewGrammarController builds a GrammarController over an already-optimized
// grammar and a shared vocabulary trie. vars is the fork group's VarStore;
// pass a fresh NewMapVarStore() for a controller not yet part of any fork
// group.
func NewGrammarController(trie *toktrie.TokTrie, g *grammar.Grammar, tok tokparser.Tokenizer, vars VarStore) *GrammarController {
	return &GrammarController{trie: trie, grm: g, tokenizer: tok, vars: vars}
}

// WithEOS records the vocabulary's EOS token id, propagated to the
// TokenParser built during InitPrompt.
func (c *GrammarController) WithEOS(id toktrie.TokenId) *GrammarController {
	c.eosID = id
	c.hasEOS = true
	return c
}

func (c *GrammarController) InitPrompt(ctx context.Context, arg InitPromptArg) (InitPromptResult, error) {
	p, err := earley.NewParser(c.grm)
	if err != nil {
		return InitPromptResult{}, err
	}
	tp := tokparser.New(c.trie, p, c.tokenizer)
	if c.hasEOS {
		tp = tp.WithEOS(c.eosID)
	}
	c.tp = tp
	return InitPromptResult{}, nil
}

// PreProcess continues unconditionally unless the fork group's VarStore has
// been told to suspend this sequence (the inspection service's manual
// unstick toggles this same variable back to resume it).
func (c *GrammarController) PreProcess(ctx context.Context, arg PreProcessArg) (PreProcessResult, error) {
	if c.vars.Eq("suspend", "1") {
		return Suspended(), nil
	}
	return Continue(), nil
}

func (c *GrammarController) MidProcess(ctx context.Context, arg MidProcessArg) (MidProcessResult, error) {
	return c.tp.MidProcess(arg.Tokens)
}

func (c *GrammarController) PostProcess(ctx context.Context, arg PostProcessArg) (PostProcessResult, error) {
	return PostProcessResult{}, nil
}

// Fork returns a sibling GrammarController sharing this one's grammar, trie,
// tokenizer, and VarStore, with its own path-copied TokenParser.
func (c *GrammarController) Fork() Controller {
	f := &GrammarController{
		trie:      c.trie,
		grm:       c.grm,
		tokenizer: c.tokenizer,
		eosID:     c.eosID,
		hasEOS:    c.hasEOS,
		vars:      c.vars,
	}
	if c.tp != nil {
		f.tp = c.tp.Fork()
	}
	return f
}

var (
	_ Controller = (*GrammarController)(nil)
	_ Forkable   = (*GrammarController)(nil)
)
