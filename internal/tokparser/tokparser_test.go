package tokparser

import (
	"fmt"
	"testing"

	"github.com/dekarrin/llmctl/internal/earley"
	"github.com/dekarrin/llmctl/internal/grammar"
	"github.com/dekarrin/llmctl/internal/toktrie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// greedyTokenizer re-tokenizes bytes by repeatedly taking the longest
// vocabulary token that matches the remaining prefix, the simplest stand-in
// for a BPE/sentencepiece tokenizer that still produces merge ambiguity
// (e.g. "abc" as one token vs "ab"+"c" as two) against a hand-built vocab.
type greedyTokenizer struct {
	trie *toktrie.TokTrie
}

func (g greedyTokenizer) TokenizeBytes(b []byte) ([]toktrie.TokenId, error) {
	var out []toktrie.TokenId
	for len(b) > 0 {
		bestLen := -1
		var bestID toktrie.TokenId
		for id := 0; id < g.trie.V(); id++ {
			tb, err := g.trie.TokenBytes(toktrie.TokenId(id))
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
			return nil, fmt.Errorf("no vocabulary token matches prefix of %q", b)
		}
		out = append(out, bestID)
		b = b[bestLen:]
	}
	return out, nil
}

func buildForcedContinuationFixture(t *testing.T) (*TokenParser, map[string]toktrie.TokenId) {
	t.Helper()
	// "Forced continuation" scenario (§8): S -> "abc", vocabulary tokenizes
	// "abc" as one token but "ab" and "c" as two. Using a non-recursive S
	// keeps force_bytes from also forcing a second "abc" once the first
	// completes, which would obscure the single splice under test.
	g := grammar.New("S")
	g.AddRule("S", grammar.T('a'), grammar.T('b'), grammar.T('c'))

	words := []string{"ab", "c", "abc"}
	tokens := make([]toktrie.TokenInfo, len(words))
	ids := make(map[string]toktrie.TokenId, len(words))
	for i, w := range words {
		tokens[i] = toktrie.TokenInfo{Bytes: []byte(w)}
		ids[w] = toktrie.TokenId(i)
	}
	trie, err := toktrie.Build(tokens, 16)
	require.NoError(t, err)

	parser, err := earley.NewParser(g)
	require.NoError(t, err)

	tp := New(trie, parser, greedyTokenizer{trie: trie})
	return tp, ids
}

func TestMidProcess_ForcedContinuationSplice(t *testing.T) {
	tp, ids := buildForcedContinuationFixture(t)

	// the host tokenized "abc" as "ab"+"c", two llm tokens; the grammar's own
	// greedy re-tokenization prefers the single "abc" token, so both llm
	// tokens must be dropped and replaced by the one grammar token.
	res, err := tp.MidProcess([]toktrie.TokenId{ids["ab"], ids["c"]})
	require.NoError(t, err)

	require.Equal(t, KindSplice, res.Kind)
	assert.Equal(t, 2, res.Backtrack)
	assert.Equal(t, []toktrie.TokenId{ids["abc"]}, res.FFTokens)
}

func TestMidProcess_EOSStopsRegardlessOfParserState(t *testing.T) {
	g := grammar.New("S")
	g.AddRule("S", grammar.T('x'))
	parser, err := earley.NewParser(g)
	require.NoError(t, err)

	trie, err := toktrie.Build([]toktrie.TokenInfo{
		{Bytes: []byte("x")},
		{Bytes: []byte("<eos>"), Special: toktrie.SpecialEOS},
	}, 16)
	require.NoError(t, err)

	tp := New(trie, parser, greedyTokenizer{trie: trie}).WithEOS(1)

	res, err := tp.MidProcess([]toktrie.TokenId{1})
	require.NoError(t, err)
	assert.Equal(t, KindStop, res.Kind)
}

func TestMidProcess_SampleWithBiasNonEmpty(t *testing.T) {
	// S -> "x" | "y", two single-byte tokens: the very first step (no
	// tokens observed yet) must produce a bias set admitting both.
	g := grammar.New("S")
	g.AddRule("S", grammar.T('x'))
	g.AddRule("S", grammar.T('y'))
	parser, err := earley.NewParser(g)
	require.NoError(t, err)

	tokens := []toktrie.TokenInfo{{Bytes: []byte("x")}, {Bytes: []byte("y")}}
	trie, err := toktrie.Build(tokens, 16)
	require.NoError(t, err)

	tp := New(trie, parser, greedyTokenizer{trie: trie})

	res, err := tp.MidProcess(nil)
	require.NoError(t, err)
	require.Equal(t, KindSampleWithBias, res.Kind)
	assert.True(t, res.Allowed.Test(0))
	assert.True(t, res.Allowed.Test(1))
}

func TestMidProcess_RejectIsFatal(t *testing.T) {
	g := grammar.New("S")
	g.AddRule("S", grammar.T('x'))
	parser, err := earley.NewParser(g)
	require.NoError(t, err)

	tokens := []toktrie.TokenInfo{{Bytes: []byte("z")}}
	trie, err := toktrie.Build(tokens, 16)
	require.NoError(t, err)

	tp := New(trie, parser, greedyTokenizer{trie: trie})

	_, err = tp.MidProcess([]toktrie.TokenId{0})
	require.Error(t, err)
}
