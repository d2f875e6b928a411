// Package demo builds a small grammar and a matching byte-level vocabulary,
// for cmd/ entrypoints and manual exercising of the engine without a real
// model checkpoint or grammar file on hand.
package demo

import (
	"github.com/dekarrin/llmctl/internal/grammar"
	"github.com/dekarrin/llmctl/internal/toktrie"
)

// Grammar builds BOOL: a grammar accepting "true" or "false" followed
// by a newline, small enough to read in a terminal but with enough shared
// prefix ("t"/"f" then a forced run of the rest of the literal) to exercise
// force_bytes and the bias computation both.
func Grammar() *grammar.Grammar {
	g := grammar.New("BOOL")
	g.AddRule("BOOL", grammar.T('t'), grammar.T('r'), grammar.T('u'), grammar.T('e'), grammar.T('\n'))
	g.AddRule("BOOL", grammar.T('f'), grammar.T('a'), grammar.T('l'), grammar.T('s'), grammar.T('e'), grammar.T('\n'))
	return g
}

// Vocab builds a byte-level TokTrie (one token per byte value 0-255) plus an
// EOS special token, wide enough to tokenize anything Grammar can match one
// byte at a time. Returns the trie and the EOS token id.
func Vocab() (*toktrie.TokTrie, toktrie.TokenId, error) {
	tokens := make([]toktrie.TokenInfo, 256, 257)
	for b := 0; b < 256; b++ {
		tokens[b] = toktrie.TokenInfo{Bytes: []byte{byte(b)}}
	}
	eosID := toktrie.TokenId(len(tokens))
	tokens = append(tokens, toktrie.TokenInfo{Special: toktrie.SpecialEOS})

	trie, err := toktrie.Build(tokens, 1)
	if err != nil {
		return nil, 0, err
	}
	return trie, eosID, nil
}
