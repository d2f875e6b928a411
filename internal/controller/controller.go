package controller

import "context"

// Controller is the host-facing per-sequence contract (§4.5): init_prompt
// precedes any number of (pre_process, mid_process, post_process) rounds,
// strictly serial for a given sequence. Implementations are never called
// concurrently for the same SeqId; the runtime enforces that by constructing
// one Controller per SeqId and never sharing it across goroutines.
type Controller interface {
	// InitPrompt runs once, before the first pre_process, with a long time
	// budget: this is where grammar compilation happens.
	InitPrompt(ctx context.Context, arg InitPromptArg) (InitPromptResult, error)

	// PreProcess decides whether to continue, fork, suspend, or stop this
	// step, with a short time budget.
	PreProcess(ctx context.Context, arg PreProcessArg) (PreProcessResult, error)

	// MidProcess runs the per-step bias/splice/stop algorithm.
	MidProcess(ctx context.Context, arg MidProcessArg) (MidProcessResult, error)

	// PostProcess records the tokens the host actually committed this step.
	PostProcess(ctx context.Context, arg PostProcessArg) (PostProcessResult, error)
}

// Forkable is implemented by a Controller that knows how to produce an
// independent copy of its own per-sequence state for the children of a
// pre_process fork (§4.5, §9 "forking as copy-on-write"). A Controller that
// never returns more than one attention mask from PreProcess need not
// implement it; the runtime's Fork path returns ErrBadArgument if a fork is
// attempted against a non-Forkable Controller.
type Forkable interface {
	Fork() Controller
}
