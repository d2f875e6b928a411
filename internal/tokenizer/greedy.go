// Package tokenizer provides tokparser.Tokenizer implementations for
// running the engine without a real model's BPE/sentencepiece tokenizer
// wired in.
package tokenizer

import (
	"fmt"

	"github.com/dekarrin/llmctl/internal/toktrie"
)

// Greedy re-tokenizes a byte string by repeatedly taking the longest
// vocabulary token matching the remaining prefix. It is not how any real
// tokenizer merges bytes, but it reproduces the same class of re-tokenize
// ambiguity (e.g. "abc" as one token vs. "ab"+"c" as two) that a real one
// does, which is all mid_process's splice-detection step needs from it.
type Greedy struct {
	Trie *toktrie.TokTrie
}

func (g Greedy) TokenizeBytes(b []byte) ([]toktrie.TokenId, error) {
	var out []toktrie.TokenId
	for len(b) > 0 {
		bestLen := -1
		var bestID toktrie.TokenId
		for id := 0; id < g.Trie.V(); id++ {
			tb, err := g.Trie.TokenBytes(toktrie.TokenId(id))
			if err != nil {
				continue
			}
			if len(tb) == 0 || len(tb) > len(b) {
				continue
			}
			if string(tb) == string(b[:len(tb)]) && len(tb) > bestLen {
				bestLen = len(tb)
				bestID = toktrie.TokenId(id)
			}
		}
		if bestLen < 0 {
			return nil, fmt.Errorf("tokenizer: no vocabulary token matches prefix of %q", b)
		}
		out = append(out, bestID)
		b = b[bestLen:]
	}
	return out, nil
}
