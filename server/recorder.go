package server

import (
	"context"
	"log"

	"github.com/dekarrin/llmctl/internal/controller"
	"github.com/dekarrin/llmctl/internal/tokparser"
	"github.com/dekarrin/llmctl/server/runlog"
	"github.com/google/uuid"
)

// storeRecorder adapts a runlog.Store to controller.Recorder, so the
// registry can report every mid_process decision without depending on the
// storage package itself.
type storeRecorder struct {
	store runlog.Store
}

// NewStoreRecorder returns a controller.Recorder that persists every
// recorded decision to store.
func NewStoreRecorder(store runlog.Store) controller.Recorder {
	return &storeRecorder{store: store}
}

func (r *storeRecorder) Record(seqID, parentID controller.SeqId, step int, res controller.MidProcessResult, suspended bool) {
	entry := runlog.Entry{
		SeqID:     uuid.UUID(seqID),
		ParentID:  uuid.UUID(parentID),
		StepIndex: step,
		Suspended: suspended,
	}

	switch res.Kind {
	case tokparser.KindStop:
		entry.Kind = runlog.DecisionStop
	case tokparser.KindSplice:
		entry.Kind = runlog.DecisionSplice
		entry.Backtrack = res.Backtrack
		entry.FFTokens = len(res.FFTokens)
	default:
		entry.Kind = runlog.DecisionBias
		if res.Allowed != nil {
			entry.BiasCount = res.Allowed.Popcount()
		}
	}

	if _, err := r.store.Runs().Create(context.Background(), entry); err != nil {
		log.Printf("runlog: failed to record step %d of sequence %s: %s", step, seqID, err)
	}
}
