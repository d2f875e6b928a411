// Package controller implements the host-facing sequence lifecycle (§4.5):
// init_prompt, pre_process, mid_process, post_process, plus the runtime that
// tracks one goroutine-free state blob per sequence, handles forking into
// sibling sequences, and cooperative suspension. mid_process itself is a thin
// wrapper over internal/tokparser; this package is where fork/suspend/stop
// bookkeeping and the VarStore coordination layer live.
package controller

import (
	"github.com/dekarrin/llmctl/internal/tokparser"
	"github.com/dekarrin/llmctl/internal/toktrie"
	"github.com/google/uuid"
)

// SeqId names one logical generation. Fresh ids are minted by the runtime
// when a sequence is first registered or when pre_process forks it into
// children; the host is expected to treat it as opaque.
type SeqId uuid.UUID

// NewSeqId mints a fresh random SeqId.
func NewSeqId() SeqId {
	return SeqId(uuid.New())
}

func (id SeqId) String() string {
	return uuid.UUID(id).String()
}

// InitPromptArg is the sole input to init_prompt: the prompt text the host
// is about to generate a continuation for.
type InitPromptArg struct {
	Prompt string
}

// InitPromptResult is presently empty (§4.5): a controller either succeeds,
// precomputing whatever grammar artifacts it needs, or returns a fatal
// error from Controller.InitPrompt.
type InitPromptResult struct{}

// PreProcessArg is the (currently empty) input to pre_process.
type PreProcessArg struct{}

// PreProcessResult carries the attention masks and suspend flag described in
// §4.5. The length of AttentionMasks, not the content of any one mask, is
// what selects stop/continue/fork:
//
//   - len == 0: stop.
//   - len == 1: continue with that single mask. A zero-length mask (an
//     empty []float32) is itself shorthand for an implicit all-ones mask,
//     so plain unconstrained continuation is AttentionMasks: [][]float32{{}}.
//   - len > 1: fork into that many children, one per mask, in order.
type PreProcessResult struct {
	AttentionMasks [][]float32
	Suspend        bool
}

// Continue builds a PreProcessResult that proceeds with a single implicit
// all-ones mask and no fork.
func Continue() PreProcessResult {
	return PreProcessResult{AttentionMasks: [][]float32{{}}}
}

// ContinueWithMask builds a PreProcessResult that continues with an explicit
// attention mask.
func ContinueWithMask(mask []float32) PreProcessResult {
	return PreProcessResult{AttentionMasks: [][]float32{mask}}
}

// Fork builds a PreProcessResult that forks into len(masks) children, one
// per mask. Passing fewer than two masks is a caller error: a single mask
// is Continue, not a fork.
func Fork(masks ...[]float32) PreProcessResult {
	return PreProcessResult{AttentionMasks: masks}
}

// Suspended builds a PreProcessResult with the suspend flag set: the host
// must not sample this step and should retry pre_process next cycle.
func Suspended() PreProcessResult {
	return PreProcessResult{Suspend: true}
}

// StopNow builds a PreProcessResult with a zero-length AttentionMasks list,
// the documented shorthand for "stop this sequence now" (§4.5: "0 -> stop").
func StopNow() PreProcessResult {
	return PreProcessResult{}
}

// MidProcessArg is the input to mid_process: the token ids newly observed
// since the previous call, plus the sibling ids of this call's fork cohort
// (length 1 outside of a fork).
type MidProcessArg struct {
	Tokens    []toktrie.TokenId
	ForkGroup []SeqId
}

// MidProcessResult re-exports the tokparser one-of: Stop, Splice, or
// SampleWithBias. Kept as a type alias rather than a wrapper struct so
// callers working directly against tokparser and callers going through the
// controller layer share one vocabulary.
type MidProcessResult = tokparser.MidProcessResult

// PostProcessArg is the input to post_process: the tokens the host actually
// sampled or fast-forwarded this step.
type PostProcessArg struct {
	Tokens []toktrie.TokenId
}

// PostProcessResult is presently empty (§4.5): post_process only updates
// internal bookkeeping and optionally converts host EOS into a Stop the next
// mid_process will honor.
type PostProcessResult struct{}
