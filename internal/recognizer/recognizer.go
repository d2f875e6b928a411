// Package recognizer provides the two concrete Recognizer flavors described
// in §4.2: a Functional recognizer, pure in (state, byte) so the trie can
// duplicate/discard state cheaply, and a Stack wrapper for any non-pure
// state, giving the trie explicit push/pop backtracking instead. Both
// satisfy toktrie.StackRecognizer, the interface the trie's traversal
// methods require.
package recognizer

import "github.com/dekarrin/llmctl/internal/toktrie"

// Transition is the pure byte-transition function of a Functional
// recognizer: given a state and a byte already confirmed ByteAllowed, it
// returns the successor state. It must not mutate state.
type Transition func(state interface{}, b byte) interface{}

// BytePredicate decides whether a byte may be appended in a given state.
type BytePredicate func(state interface{}, b byte) bool

// SpecialPredicate decides whether a special token may be emitted in a given
// state.
type SpecialPredicate func(state interface{}, t toktrie.TokenId, kind toktrie.SpecialKind) bool

// Functional is a stateless-transition Recognizer: every Append computes a
// fresh state from the transition function rather than mutating in place,
// so pushing onto its internal stack is just saving the old state value
// (§4.2, §9 "stateful recognizer without mutation-in-recursion", option (b)).
type Functional struct {
	State          interface{}
	ByteAllowedFn  BytePredicate
	SpecialAllowedFn SpecialPredicate
	AppendFn       Transition

	stack []interface{}
}

// NewFunctional builds a Functional recognizer starting at initial.
func NewFunctional(initial interface{}, byteAllowed BytePredicate, specialAllowed SpecialPredicate, appendFn Transition) *Functional {
	return &Functional{
		State:            initial,
		ByteAllowedFn:    byteAllowed,
		SpecialAllowedFn: specialAllowed,
		AppendFn:         appendFn,
	}
}

func (f *Functional) ByteAllowed(b byte) bool {
	return f.ByteAllowedFn(f.State, b)
}

func (f *Functional) SpecialAllowed(t toktrie.TokenId, kind toktrie.SpecialKind) bool {
	return f.SpecialAllowedFn(f.State, t, kind)
}

func (f *Functional) Append(b byte) {
	f.State = f.AppendFn(f.State, b)
}

// Push saves the current state and then behaves like Append.
func (f *Functional) Push(b byte) {
	f.stack = append(f.stack, f.State)
	f.Append(b)
}

// Pop restores the state saved by the most recent unmatched Push.
func (f *Functional) Pop() {
	n := len(f.stack) - 1
	f.State = f.stack[n]
	f.stack = f.stack[:n]
}

// Reset rewinds the recognizer to a fresh state, discarding any pushed
// history. Used between sequences or fork children that should not share
// mutable stack slices.
func (f *Functional) Reset(initial interface{}) {
	f.State = initial
	f.stack = f.stack[:0]
}

// Snapshottable is the capability set a non-pure, stateful recognizer (a
// grammar-backed parser chart, for instance) exposes so that Stack can give
// it push/pop backtracking without the recognizer needing to implement its
// own undo logic (§4.2, §9 option (a)).
type Snapshottable interface {
	ByteAllowed(b byte) bool
	SpecialAllowed(t toktrie.TokenId, kind toktrie.SpecialKind) bool
	Append(b byte)

	// Snapshot captures enough state to later Restore to this exact point.
	// Implementations backed by an append-only structure (e.g. an Earley
	// chart) typically return a row index rather than copying the whole
	// structure.
	Snapshot() interface{}
	Restore(mark interface{})
}

// Stack wraps any Snapshottable in the push/pop discipline
// toktrie.StackRecognizer requires, using Snapshot/Restore instead of a
// parallel state stack. Grammar parsers prefer this flavor for chart
// efficiency (§9).
type Stack struct {
	Snapshottable
	marks []interface{}
}

// NewStack wraps s in push/pop backtracking.
func NewStack(s Snapshottable) *Stack {
	return &Stack{Snapshottable: s}
}

func (s *Stack) Push(b byte) {
	s.marks = append(s.marks, s.Snapshot())
	s.Append(b)
}

func (s *Stack) Pop() {
	n := len(s.marks) - 1
	s.Restore(s.marks[n])
	s.marks = s.marks[:n]
}

var (
	_ toktrie.StackRecognizer = (*Functional)(nil)
	_ toktrie.StackRecognizer = (*Stack)(nil)
)
