// Package inmem is an in-memory runlog.Store, used for tests and for running
// the inspection service without a configured database file.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dekarrin/llmctl/server/runlog"
	"github.com/google/uuid"
)

func NewStore() runlog.Store {
	return &store{runs: NewRunRepository()}
}

type store struct {
	runs *RunRepository
}

func (s *store) Runs() runlog.RunRepository { return s.runs }
func (s *store) Close() error               { return nil }

func NewRunRepository() *RunRepository {
	return &RunRepository{
		entries: make(map[uuid.UUID]runlog.Entry),
		bySeq:   make(map[uuid.UUID][]uuid.UUID),
		seqSeen: make(map[uuid.UUID]time.Time),
	}
}

// RunRepository is a mutex-guarded map plus a by-sequence secondary index,
// the same shape the engine's VarStore uses for sibling coordination,
// applied here to run-log rows instead of generation variables.
type RunRepository struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]runlog.Entry
	bySeq   map[uuid.UUID][]uuid.UUID
	seqSeen map[uuid.UUID]time.Time
}

func (r *RunRepository) Close() error { return nil }

func (r *RunRepository) Create(ctx context.Context, e runlog.Entry) (runlog.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := uuid.NewRandom()
	if err != nil {
		return runlog.Entry{}, err
	}
	e.ID = id
	if e.Recorded.IsZero() {
		e.Recorded = time.Now()
	}

	r.entries[id] = e
	r.bySeq[e.SeqID] = append(r.bySeq[e.SeqID], id)
	r.seqSeen[e.SeqID] = e.Recorded

	return e, nil
}

func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (runlog.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return runlog.Entry{}, runlog.ErrNotFound
	}
	return e, nil
}

func (r *RunRepository) GetAllBySeq(ctx context.Context, seqID uuid.UUID) ([]runlog.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.bySeq[seqID]
	out := make([]runlog.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.entries[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepIndex < out[j].StepIndex })
	return out, nil
}

func (r *RunRepository) ListSeqIDs(ctx context.Context) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]uuid.UUID, 0, len(r.seqSeen))
	for id := range r.seqSeen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return r.seqSeen[out[i]].After(r.seqSeen[out[j]]) })
	return out, nil
}

func (r *RunRepository) DeleteBySeq(ctx context.Context, seqID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.bySeq[seqID] {
		delete(r.entries, id)
	}
	delete(r.bySeq, seqID)
	delete(r.seqSeen, seqID)
	return nil
}
