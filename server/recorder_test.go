package server

import (
	"context"
	"testing"

	"github.com/dekarrin/llmctl/internal/controller"
	"github.com/dekarrin/llmctl/internal/toktrie"
	"github.com/dekarrin/llmctl/internal/tokparser"
	"github.com/dekarrin/llmctl/server/runlog"
	"github.com/dekarrin/llmctl/server/runlog/inmem"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRecorderPersistsBiasDecisionWithPopcount(t *testing.T) {
	store := inmem.NewStore()
	rec := NewStoreRecorder(store)

	set := toktrie.NewTokenSet(16)
	set.Insert(1)
	set.Insert(2)
	set.Insert(3)

	seqID := controller.NewSeqId()
	rec.Record(seqID, controller.SeqId{}, 1, tokparser.SampleWithBias(set), false)

	entries, err := store.Runs().GetAllBySeq(context.Background(), uuid.UUID(seqID))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, runlog.DecisionBias, entries[0].Kind)
	assert.Equal(t, 3, entries[0].BiasCount)
}

func TestStoreRecorderPersistsSpliceDecision(t *testing.T) {
	store := inmem.NewStore()
	rec := NewStoreRecorder(store)

	seqID := controller.NewSeqId()
	rec.Record(seqID, controller.SeqId{}, 2, tokparser.Splice(1, []toktrie.TokenId{5, 6}), false)

	entries, err := store.Runs().GetAllBySeq(context.Background(), uuid.UUID(seqID))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, runlog.DecisionSplice, entries[0].Kind)
	assert.Equal(t, 1, entries[0].Backtrack)
	assert.Equal(t, 2, entries[0].FFTokens)
}

func TestStoreRecorderPersistsStopDecision(t *testing.T) {
	store := inmem.NewStore()
	rec := NewStoreRecorder(store)

	seqID := controller.NewSeqId()
	rec.Record(seqID, controller.SeqId{}, 3, tokparser.Stop(), true)

	entries, err := store.Runs().GetAllBySeq(context.Background(), uuid.UUID(seqID))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, runlog.DecisionStop, entries[0].Kind)
	assert.True(t, entries[0].Suspended)
}
