// Package tokparser implements the per-step TokenParser (§4.4): it
// translates between the LLM's token-id stream and the grammar's byte
// stream, running the 8-step mid_process algorithm that produces Stop,
// Splice, or SampleWithBias for each controller step.
package tokparser

import (
	"github.com/dekarrin/llmctl/internal/ctrlerr"
	"github.com/dekarrin/llmctl/internal/earley"
	"github.com/dekarrin/llmctl/internal/recognizer"
	"github.com/dekarrin/llmctl/internal/toktrie"
)

// Tokenizer re-tokenizes a raw byte string the way the host LLM's own
// tokenizer would, so the parser's forced bytes can be compared against the
// token-id stream the host is actually sampling over (§4.4 step 4). A real
// deployment backs this with the model's BPE/sentencepiece tokenizer; tests
// use a greedy-longest-match stub over the same vocabulary the TokTrie was
// built from.
type Tokenizer interface {
	TokenizeBytes(b []byte) ([]toktrie.TokenId, error)
}

// ResultKind tags which variant of MidProcessResult is populated.
type ResultKind int

const (
	KindSampleWithBias ResultKind = iota
	KindSplice
	KindStop
)

// MidProcessResult is the one-of output of a mid_process step.
type MidProcessResult struct {
	Kind ResultKind

	// Allowed is populated for KindSampleWithBias.
	Allowed *toktrie.TokenSet

	// Backtrack and FFTokens are populated for KindSplice: drop Backtrack
	// trailing tokens from the KV cache and replace them with FFTokens.
	Backtrack int
	FFTokens  []toktrie.TokenId
}

// Stop builds a KindStop result.
func Stop() MidProcessResult {
	return MidProcessResult{Kind: KindStop}
}

// Splice builds a KindSplice result.
func Splice(backtrack int, ffTokens []toktrie.TokenId) MidProcessResult {
	return MidProcessResult{Kind: KindSplice, Backtrack: backtrack, FFTokens: ffTokens}
}

// SampleWithBias builds a KindSampleWithBias result.
func SampleWithBias(allowed *toktrie.TokenSet) MidProcessResult {
	return MidProcessResult{Kind: KindSampleWithBias, Allowed: allowed}
}

// TokenParser holds the running state for a single sequence: the token-id
// history the host believes is in its KV cache, the grammar's byte-level
// Parser, and the TokTrie/Tokenizer used to move between the two alphabets.
type TokenParser struct {
	Trie      *toktrie.TokTrie
	Parser    *earley.Parser
	Tokenizer Tokenizer

	llmTokens []toktrie.TokenId
	eosID     toktrie.TokenId
	hasEOS    bool
}

// New builds a TokenParser over trie/parser/tokenizer. If the vocabulary has
// an EOS token, pass its id via WithEOS; without one, step 3 never fires.
func New(trie *toktrie.TokTrie, parser *earley.Parser, tok Tokenizer) *TokenParser {
	return &TokenParser{Trie: trie, Parser: parser, Tokenizer: tok}
}

// WithEOS records the vocabulary's EOS token id, so MidProcess can detect it
// in the observed token stream (step 3).
func (tp *TokenParser) WithEOS(id toktrie.TokenId) *TokenParser {
	tp.eosID = id
	tp.hasEOS = true
	return tp
}

// LLMTokens returns the token-id history the TokenParser believes is
// currently committed, for inspection/debugging.
func (tp *TokenParser) LLMTokens() []toktrie.TokenId {
	return append([]toktrie.TokenId(nil), tp.llmTokens...)
}

// Fork returns an independent copy of tp for the controller's fork lifecycle
// (§4.5): the Parser chart is path-copied (earley.Parser.Fork), llm_tokens is
// copied, and the Trie/Tokenizer/EOS configuration (all read-only or
// immutable after New/WithEOS) are shared.
func (tp *TokenParser) Fork() *TokenParser {
	f := &TokenParser{
		Trie:      tp.Trie,
		Parser:    tp.Parser.Fork(),
		Tokenizer: tp.Tokenizer,
		llmTokens: append([]toktrie.TokenId(nil), tp.llmTokens...),
		eosID:     tp.eosID,
		hasEOS:    tp.hasEOS,
	}
	return f
}

// MidProcess runs the 8-step algorithm of §4.4 against tokens newly observed
// since the prior call.
func (tp *TokenParser) MidProcess(tokens []toktrie.TokenId) (MidProcessResult, error) {
	// Step 1: extend llm_tokens and feed the cumulative stream to the
	// parser; ApplyTokens skips what's already committed to the chart.
	tp.llmTokens = append(tp.llmTokens, tokens...)
	if msg := tp.Parser.ApplyTokens(tp.Trie, tp.llmTokens); msg != "" {
		return MidProcessResult{}, ctrlerr.Rejectf("%s", msg)
	}

	// Step 2: flush any deterministic grammar continuation.
	tp.Parser.ForceBytes()

	// Step 3: EOS short-circuits everything else.
	if tp.hasEOS {
		for _, t := range tokens {
			if t == tp.eosID {
				return Stop(), nil
			}
		}
	}

	// Step 4: re-tokenize the whole forced byte string produced so far for
	// this generation (not a delta: GetBytes always reports from row 0).
	forcedBytes := tp.Parser.GetBytes()
	grmTokens, err := tp.Tokenizer.TokenizeBytes(forcedBytes)
	if err != nil {
		return MidProcessResult{}, ctrlerr.Invariantf("re-tokenizing forced bytes: %s", err)
	}

	// Step 5: chop the ambiguous suffix.
	chopBytes := tp.chopAmbiguousSuffix(&grmTokens, forcedBytes)

	// Step 6: detect a splice against llm_tokens. grm_tokens is walked in
	// full; an index past the end of llm_tokens also counts as a
	// disagreement (there is no llm token there to agree with), which is
	// how a pure fast-forward (backtrack=0) splice is detected.
	for i := 0; i < len(grmTokens); i++ {
		if i >= len(tp.llmTokens) || tp.llmTokens[i] != grmTokens[i] {
			backtrack := len(tp.llmTokens) - i
			ff := append([]toktrie.TokenId(nil), grmTokens[i:]...)
			tp.llmTokens = append(append([]toktrie.TokenId(nil), tp.llmTokens[:i]...), ff...)
			return Splice(backtrack, ff), nil
		}
	}

	// Step 7: compute the byte suffix.
	byteSuffix, err := tp.computeByteSuffix(grmTokens, forcedBytes, chopBytes)
	if err != nil {
		return MidProcessResult{}, err
	}

	// Step 8: compute the bias set over byteSuffix and return it.
	set := tp.Trie.AllocTokenSet()
	rec := recognizer.NewStack(tp.Parser)
	tp.Trie.ComputeBiasExt(rec, set, byteSuffix)
	return SampleWithBias(set), nil
}

// chopAmbiguousSuffix implements step 5: walking grmTokens from the end,
// find the greatest number of trailing tokens whose byte suffix could still
// validly extend (has_valid_extensions over the parser), and truncate
// *grmTokens by that many. Returns the number of bytes those chopped tokens
// decoded to, needed by step 7.
func (tp *TokenParser) chopAmbiguousSuffix(grmTokens *[]toktrie.TokenId, forcedBytes []byte) int {
	toks := *grmTokens
	chopBytes := 0
	chopCount := 0

	rec := recognizer.NewStack(tp.Parser)
	var suffix []byte
	for i := len(toks) - 1; i >= 0; i-- {
		tb, err := tp.Trie.TokenBytes(toks[i])
		if err != nil {
			break
		}
		suffix = append(append([]byte(nil), tb...), suffix...)
		if len(suffix) > tp.Trie.MaxTokenLen() {
			break
		}
		if tp.Trie.HasValidExtensions(rec, suffix) {
			chopBytes = len(suffix)
			chopCount = len(toks) - i
		}
	}

	if chopCount > 0 {
		*grmTokens = toks[:len(toks)-chopCount]
	}
	return chopBytes
}

// computeByteSuffix implements step 7.
func (tp *TokenParser) computeByteSuffix(grmTokens []toktrie.TokenId, forcedBytes []byte, chopBytes int) ([]byte, error) {
	n := len(grmTokens)
	if n > len(tp.llmTokens) {
		n = len(tp.llmTokens)
	}
	llmSuffixIDs := tp.llmTokens[n:]
	llmSuffix, err := tp.Trie.Decode(llmSuffixIDs)
	if err != nil {
		return nil, ctrlerr.Invariantf("decoding llm_suffix: %s", err)
	}

	if chopBytes > len(forcedBytes) {
		chopBytes = len(forcedBytes)
	}
	grmSuffix := forcedBytes[len(forcedBytes)-chopBytes:]

	if len(grmSuffix) < len(llmSuffix) {
		extra := llmSuffix[len(grmSuffix):]
		for _, b := range extra {
			if tp.Parser.Scan(b) != earley.Accept {
				return nil, ctrlerr.Invariant("extra llm bytes must Accept per the prefix invariant")
			}
		}
		return nil, nil
	}

	if len(llmSuffix) > len(grmSuffix) {
		return nil, ctrlerr.Invariant("llm_suffix longer than grm_suffix violates the prefix invariant")
	}
	return grmSuffix[len(llmSuffix):], nil
}
