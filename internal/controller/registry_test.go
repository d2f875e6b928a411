package controller

import (
	"context"
	"testing"

	"github.com/dekarrin/llmctl/internal/ctrlerr"
	"github.com/dekarrin/llmctl/internal/demo"
	"github.com/dekarrin/llmctl/internal/grammar"
	"github.com/dekarrin/llmctl/internal/tokenizer"
	"github.com/dekarrin/llmctl/internal/tokparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultingController always returns an ErrInvariant-caused error from
// MidProcess, standing in for a parser that has hit a prefix-invariant
// violation deep in tokparser.
type faultingController struct{}

func (faultingController) InitPrompt(context.Context, InitPromptArg) (InitPromptResult, error) {
	return InitPromptResult{}, nil
}

func (faultingController) PreProcess(context.Context, PreProcessArg) (PreProcessResult, error) {
	return Continue(), nil
}

func (faultingController) MidProcess(context.Context, MidProcessArg) (MidProcessResult, error) {
	return MidProcessResult{}, ctrlerr.Invariant("llm_suffix longer than grm_suffix violates the prefix invariant")
}

func (faultingController) PostProcess(context.Context, PostProcessArg) (PostProcessResult, error) {
	return PostProcessResult{}, nil
}

func newDemoRegistry(t *testing.T) *Registry {
	t.Helper()
	trie, eosID, err := demo.Vocab()
	require.NoError(t, err)
	g, err := grammar.Optimize(demo.Grammar())
	require.NoError(t, err)
	tok := tokenizer.Greedy{Trie: trie}

	factory := func(vars VarStore) Controller {
		return NewGrammarController(trie, g, tok, vars).WithEOS(eosID)
	}
	return NewRegistry(factory, NopRecorder{})
}

func TestRegistryStartAssignsFreshSeqId(t *testing.T) {
	r := newDemoRegistry(t)
	id, err := r.Start(context.Background(), "")
	require.NoError(t, err)
	assert.NotEqual(t, SeqId{}, id)

	info, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, info.ID)
	assert.False(t, info.HasParent)
	assert.Equal(t, 0, info.Step)
}

func TestRegistryGetUnknownSeqReturnsNotFound(t *testing.T) {
	r := newDemoRegistry(t)
	_, err := r.Get(NewSeqId())
	require.Error(t, err)
}

func TestRegistryPreProcessContinuesAndMidProcessIncrementsStep(t *testing.T) {
	r := newDemoRegistry(t)
	id, err := r.Start(context.Background(), "")
	require.NoError(t, err)

	pre, err := r.PreProcess(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, pre.Stopped)
	assert.Empty(t, pre.NewSeqs)

	res, err := r.MidProcess(context.Background(), id, MidProcessArg{})
	require.NoError(t, err)
	assert.Equal(t, tokparser.KindSampleWithBias, res.Kind)

	info, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Step)
}

func TestRegistrySuspendAndResumeToggleStatus(t *testing.T) {
	r := newDemoRegistry(t)
	id, err := r.Start(context.Background(), "")
	require.NoError(t, err)

	require.NoError(t, r.Suspend(id))
	info, err := r.Get(id)
	require.NoError(t, err)
	assert.True(t, info.Suspended)

	pre, err := r.PreProcess(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, pre.Result.Suspend)
	assert.False(t, pre.Stopped)

	// a suspended sequence must still exist, not be torn down like a stop.
	info, err = r.Get(id)
	require.NoError(t, err)
	assert.True(t, info.Suspended)

	require.NoError(t, r.Resume(id))
	info, err = r.Get(id)
	require.NoError(t, err)
	assert.False(t, info.Suspended)
}

func TestRegistryMidProcessMapsInvariantFaultToStop(t *testing.T) {
	r := NewRegistry(func(VarStore) Controller { return faultingController{} }, NopRecorder{})
	id, err := r.Start(context.Background(), "")
	require.NoError(t, err)

	res, err := r.MidProcess(context.Background(), id, MidProcessArg{})
	require.NoError(t, err)
	assert.Equal(t, tokparser.KindStop, res.Kind)

	_, err = r.Get(id)
	require.Error(t, err)
}

func TestRegistryDeleteRemovesSequence(t *testing.T) {
	r := newDemoRegistry(t)
	id, err := r.Start(context.Background(), "")
	require.NoError(t, err)

	require.NoError(t, r.Delete(id))
	_, err = r.Get(id)
	require.Error(t, err)
}

func TestRegistryDeleteUnknownSeqReturnsError(t *testing.T) {
	r := newDemoRegistry(t)
	err := r.Delete(NewSeqId())
	require.Error(t, err)
}

func TestRegistryListReflectsLiveSequences(t *testing.T) {
	r := newDemoRegistry(t)
	idA, err := r.Start(context.Background(), "")
	require.NoError(t, err)
	idB, err := r.Start(context.Background(), "")
	require.NoError(t, err)

	all := r.List()
	require.Len(t, all, 2)

	ids := map[SeqId]bool{}
	for _, info := range all {
		ids[info.ID] = true
	}
	assert.True(t, ids[idA])
	assert.True(t, ids[idB])
}
