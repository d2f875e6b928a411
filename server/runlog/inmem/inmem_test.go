package inmem

import (
	"context"
	"testing"

	"github.com/dekarrin/llmctl/server/runlog"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAssignsIDAndTimestamp(t *testing.T) {
	store := NewStore()
	seqID := uuid.New()

	e, err := store.Runs().Create(context.Background(), runlog.Entry{
		SeqID:     seqID,
		StepIndex: 0,
		Kind:      runlog.DecisionBias,
		BiasCount: 4,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.False(t, e.Recorded.IsZero())
}

func TestGetAllBySeqOrdersByStepIndex(t *testing.T) {
	store := NewStore()
	seqID := uuid.New()

	for _, step := range []int{2, 0, 1} {
		_, err := store.Runs().Create(context.Background(), runlog.Entry{
			SeqID: seqID, StepIndex: step, Kind: runlog.DecisionBias,
		})
		require.NoError(t, err)
	}

	entries, err := store.Runs().GetAllBySeq(context.Background(), seqID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 0, entries[0].StepIndex)
	assert.Equal(t, 1, entries[1].StepIndex)
	assert.Equal(t, 2, entries[2].StepIndex)
}

func TestGetByIDReturnsErrNotFoundForUnknownID(t *testing.T) {
	store := NewStore()
	_, err := store.Runs().GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, runlog.ErrNotFound)
}

func TestDeleteBySeqRemovesAllEntriesForThatSequence(t *testing.T) {
	store := NewStore()
	seqA, seqB := uuid.New(), uuid.New()

	_, err := store.Runs().Create(context.Background(), runlog.Entry{SeqID: seqA, StepIndex: 0, Kind: runlog.DecisionBias})
	require.NoError(t, err)
	_, err = store.Runs().Create(context.Background(), runlog.Entry{SeqID: seqB, StepIndex: 0, Kind: runlog.DecisionBias})
	require.NoError(t, err)

	require.NoError(t, store.Runs().DeleteBySeq(context.Background(), seqA))

	aEntries, err := store.Runs().GetAllBySeq(context.Background(), seqA)
	require.NoError(t, err)
	assert.Empty(t, aEntries)

	bEntries, err := store.Runs().GetAllBySeq(context.Background(), seqB)
	require.NoError(t, err)
	assert.Len(t, bEntries, 1)
}

func TestListSeqIDsMostRecentlyActiveFirst(t *testing.T) {
	store := NewStore()
	seqA, seqB := uuid.New(), uuid.New()

	_, err := store.Runs().Create(context.Background(), runlog.Entry{SeqID: seqA, StepIndex: 0, Kind: runlog.DecisionBias})
	require.NoError(t, err)
	_, err = store.Runs().Create(context.Background(), runlog.Entry{SeqID: seqB, StepIndex: 0, Kind: runlog.DecisionBias})
	require.NoError(t, err)

	ids, err := store.Runs().ListSeqIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, seqB, ids[0])
}
