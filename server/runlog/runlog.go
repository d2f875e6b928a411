// Package runlog provides persistence for the operator inspection service's
// record of mid_process decisions in a repository-per-entity shape: a Store
// holding one repository, with inmem and sqlite implementations behind the
// same interface.
package runlog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the requested run or entry does not exist.
	ErrNotFound = errors.New("the requested resource was not found")
)

// DecisionKind classifies one mid_process outcome for inspection purposes.
type DecisionKind string

const (
	DecisionBias   DecisionKind = "bias"
	DecisionSplice DecisionKind = "splice"
	DecisionStop   DecisionKind = "stop"
)

// Entry records a single step of a sequence's decoding: what mid_process
// decided, with the counts that summarize it (backtrack, fast-forward length,
// bias popcount) rather than any of the parser's chart state.
type Entry struct {
	ID         uuid.UUID
	SeqID      uuid.UUID
	ParentID   uuid.UUID // zero UUID if this sequence was never forked
	StepIndex  int
	Kind       DecisionKind
	Backtrack  int
	FFTokens   int
	BiasCount  int // popcount of the allowed-token bitset, when Kind is DecisionBias
	Suspended  bool
	Recorded   time.Time
}

// Store holds the run-log repository. It is intentionally a single
// repository rather than the teacher's several-entity Store, since the
// inspection service only ever persists one kind of record.
type Store interface {
	Runs() RunRepository
	Close() error
}

// RunRepository is the repository for run-log Entry rows.
type RunRepository interface {
	Create(ctx context.Context, e Entry) (Entry, error)
	GetByID(ctx context.Context, id uuid.UUID) (Entry, error)

	// GetAllBySeq returns every Entry for seqID, ordered by StepIndex.
	GetAllBySeq(ctx context.Context, seqID uuid.UUID) ([]Entry, error)

	// ListSeqIDs returns the distinct sequence ids with at least one entry,
	// most recently active first.
	ListSeqIDs(ctx context.Context) ([]uuid.UUID, error)

	// DeleteBySeq removes every Entry for seqID.
	DeleteBySeq(ctx context.Context, seqID uuid.UUID) error

	Close() error
}
