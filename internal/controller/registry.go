package controller

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/dekarrin/llmctl/internal/ctrlerr"
	"github.com/dekarrin/llmctl/internal/tokparser"
)

// Factory builds a fresh Controller for a newly registered top-level
// sequence, sharing whatever immutable grammar/trie/tokenizer state the
// caller has already built and handing it a fresh VarStore for its fork
// group.
type Factory func(vars VarStore) Controller

// Recorder is notified of every mid_process decision the Registry drives,
// so an inspection surface can persist it without the Registry itself
// depending on any particular storage package.
type Recorder interface {
	Record(seqID, parentID SeqId, step int, result MidProcessResult, suspended bool)
}

// NopRecorder implements Recorder by discarding everything, for callers
// (and tests) that don't need a run log.
type NopRecorder struct{}

func (NopRecorder) Record(SeqId, SeqId, int, MidProcessResult, bool) {}

type sequenceState struct {
	id        SeqId
	parent    SeqId
	hasParent bool
	ctrl      Controller
	vars      VarStore
	step      int
	suspended bool
	stopped   bool
	children  []SeqId
}

// Registry tracks one Controller instance per live SeqId, handling the
// fork/suspend/stop bookkeeping of §4.5 that sits above the per-sequence
// Controller contract: it is the thing that actually owns "one goroutine-free
// state blob per sequence" and the fork-group tree, while delegating the
// bias/splice/stop decision itself to whatever Controller the Factory built.
type Registry struct {
	mu       sync.RWMutex
	seqs     map[SeqId]*sequenceState
	factory  Factory
	recorder Recorder
}

// NewRegistry builds an empty Registry. recorder may be NopRecorder{}.
func NewRegistry(factory Factory, recorder Recorder) *Registry {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Registry{seqs: make(map[SeqId]*sequenceState), factory: factory, recorder: recorder}
}

// Start registers a brand-new top-level sequence, running InitPrompt on a
// freshly built Controller, and returns its SeqId.
func (r *Registry) Start(ctx context.Context, prompt string) (SeqId, error) {
	vars := NewMapVarStore()
	ctrl := r.factory(vars)
	if _, err := ctrl.InitPrompt(ctx, InitPromptArg{Prompt: prompt}); err != nil {
		return SeqId{}, err
	}

	id := NewSeqId()
	r.mu.Lock()
	r.seqs[id] = &sequenceState{id: id, ctrl: ctrl, vars: vars}
	r.mu.Unlock()
	return id, nil
}

func (r *Registry) lookup(id SeqId) (*sequenceState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.seqs[id]
	if !ok {
		return nil, ctrlerr.NotFoundf("no such sequence %s", id)
	}
	return s, nil
}

// PreProcessResultSet is the outcome of driving PreProcess for one sequence:
// Continue/Suspend carry no new ids, Stop removes the sequence, and Fork
// mints one new SeqId per additional attention mask, each sharing the
// parent's VarStore.
type PreProcessResultSet struct {
	Result   PreProcessResult
	Stopped  bool
	NewSeqs  []SeqId // additional children minted by a fork, in AttentionMasks order after the first
}

// PreProcess drives one sequence's pre_process step and performs the
// resulting fork/suspend/stop bookkeeping.
func (r *Registry) PreProcess(ctx context.Context, id SeqId) (PreProcessResultSet, error) {
	s, err := r.lookup(id)
	if err != nil {
		return PreProcessResultSet{}, err
	}

	res, err := s.ctrl.PreProcess(ctx, PreProcessArg{})
	if err != nil {
		return PreProcessResultSet{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case res.Suspend:
		s.suspended = true
		return PreProcessResultSet{Result: res}, nil

	case len(res.AttentionMasks) == 0:
		s.stopped = true
		delete(r.seqs, id)
		return PreProcessResultSet{Result: res, Stopped: true}, nil

	case len(res.AttentionMasks) == 1:
		s.suspended = false
		return PreProcessResultSet{Result: res}, nil

	default:
		empty := 0
		for _, m := range res.AttentionMasks {
			if len(m) == 0 {
				empty++
			}
		}
		if empty > 0 && empty < len(res.AttentionMasks) {
			return PreProcessResultSet{}, ctrlerr.BadArgument("pre_process returned a mix of zero-length and non-zero-length attention masks")
		}
		forkable, ok := s.ctrl.(Forkable)
		if !ok {
			return PreProcessResultSet{}, ctrlerr.BadArgument("controller does not support forking but pre_process returned more than one attention mask")
		}
		var newIDs []SeqId
		for i := 1; i < len(res.AttentionMasks); i++ {
			child := &sequenceState{
				id:        NewSeqId(),
				parent:    id,
				hasParent: true,
				ctrl:      forkable.Fork(),
				vars:      s.vars,
				step:      s.step,
			}
			r.seqs[child.id] = child
			s.children = append(s.children, child.id)
			newIDs = append(newIDs, child.id)
		}
		return PreProcessResultSet{Result: res, NewSeqs: newIDs}, nil
	}
}

// MidProcess drives one sequence's mid_process step, records it via the
// Registry's Recorder, and returns the result.
//
// A controller invariant fault (a ctrlerr.ErrInvariant-caused error, or an
// unrecovered panic from deep in the parser) never reaches the caller as a
// raw error: it is mapped to a Stop result carrying the diagnostic, the
// sequence is removed from the registry, and the Stop is recorded like any
// other decision, per the documented failure semantics of a bad step.
func (r *Registry) MidProcess(ctx context.Context, id SeqId, arg MidProcessArg) (result MidProcessResult, err error) {
	s, err := r.lookup(id)
	if err != nil {
		return MidProcessResult{}, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			result, err = r.stopOnFault(s, id, fmt.Errorf("panic: %v", rec))
		}
	}()

	res, mpErr := s.ctrl.MidProcess(ctx, arg)
	if mpErr != nil {
		return r.stopOnFault(s, id, mpErr)
	}

	r.mu.Lock()
	s.step++
	step := s.step
	parent, hasParent := s.parent, s.hasParent
	r.mu.Unlock()

	var parentID SeqId
	if hasParent {
		parentID = parent
	}
	r.recorder.Record(id, parentID, step, res, s.suspended)
	return res, nil
}

// stopOnFault converts a mid_process fault into an operator-visible Stop
// result instead of propagating the raw error: the technical cause is
// logged, the sequence is torn down, and a Stop decision is recorded for it
// so the run log shows why generation ended.
func (r *Registry) stopOnFault(s *sequenceState, id SeqId, cause error) (MidProcessResult, error) {
	r.mu.Lock()
	s.step++
	step := s.step
	parent, hasParent := s.parent, s.hasParent
	s.stopped = true
	delete(r.seqs, id)
	r.mu.Unlock()

	log.Printf("sequence %s: mid_process faulted, stopping: %s", id, cause)

	res := tokparser.Stop()
	var parentID SeqId
	if hasParent {
		parentID = parent
	}
	r.recorder.Record(id, parentID, step, res, s.suspended)
	return res, nil
}

// PostProcess drives one sequence's post_process step.
func (r *Registry) PostProcess(ctx context.Context, id SeqId, arg PostProcessArg) (PostProcessResult, error) {
	s, err := r.lookup(id)
	if err != nil {
		return PostProcessResult{}, err
	}
	return s.ctrl.PostProcess(ctx, arg)
}

// Suspend marks id suspended without waiting for its own PreProcess to
// request it, the mechanism the inspection service's manual pause uses.
func (r *Registry) Suspend(id SeqId) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	s.vars.Set("suspend", "1")
	r.mu.Lock()
	s.suspended = true
	r.mu.Unlock()
	return nil
}

// Resume clears a manual or self-requested suspension on id.
func (r *Registry) Resume(id SeqId) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	s.vars.Set("suspend", "0")
	r.mu.Lock()
	s.suspended = false
	r.mu.Unlock()
	return nil
}

// Delete removes id from the registry without running any further
// lifecycle calls against it.
func (r *Registry) Delete(id SeqId) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seqs[id]; !ok {
		return ctrlerr.NotFoundf("no such sequence %s", id)
	}
	delete(r.seqs, id)
	return nil
}

// SeqInfo is the read-only snapshot of a sequence's registry bookkeeping,
// for inspection endpoints.
type SeqInfo struct {
	ID        SeqId
	Parent    SeqId
	HasParent bool
	Children  []SeqId
	Step      int
	Suspended bool
}

// List returns a snapshot of every currently-registered sequence.
func (r *Registry) List() []SeqInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SeqInfo, 0, len(r.seqs))
	for _, s := range r.seqs {
		out = append(out, SeqInfo{
			ID: s.id, Parent: s.parent, HasParent: s.hasParent,
			Children: append([]SeqId(nil), s.children...),
			Step:     s.step, Suspended: s.suspended,
		})
	}
	return out
}

// Get returns the snapshot for a single sequence.
func (r *Registry) Get(id SeqId) (SeqInfo, error) {
	s, err := r.lookup(id)
	if err != nil {
		return SeqInfo{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return SeqInfo{
		ID: s.id, Parent: s.parent, HasParent: s.hasParent,
		Children: append([]SeqId(nil), s.children...),
		Step:     s.step, Suspended: s.suspended,
	}, nil
}
