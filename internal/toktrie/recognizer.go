package toktrie

// Recognizer is the four-operation capability set a caller-specified
// language exposes to the trie (§4.2, design note "dynamic dispatch over
// recognizers"). It is expressed as a small interface (a vtable) rather than
// per-node virtual calls, so implementations can be monomorphized by the Go
// compiler at call sites that only ever see one concrete type.
//
// A Recognizer is stateful: ByteAllowed/SpecialAllowed answer relative to
// whatever state the most recent Append calls established. Implementations
// that cannot cheaply duplicate their state (e.g. a parser chart) should wrap
// themselves with a StackRecognizer (see internal/recognizer) so the trie can
// push/pop instead of cloning.
type Recognizer interface {
	// ByteAllowed reports whether byte b may be appended in the current
	// state.
	ByteAllowed(b byte) bool

	// SpecialAllowed reports whether special token id t may be emitted in the
	// current state.
	SpecialAllowed(t TokenId, kind SpecialKind) bool

	// Append advances state by one byte. Callers must only call this after
	// ByteAllowed(b) returned true for the same b.
	Append(b byte)
}

// StackRecognizer is a Recognizer that additionally supports explicit
// backtracking, so the trie's depth-first traversal can explore a subtree
// and then undo side effects without re-driving from the root (§4.2, §9).
type StackRecognizer interface {
	Recognizer

	// Push saves enough state to later Pop back to it, then behaves like
	// Append(b).
	Push(b byte)

	// Pop restores the state saved by the most recent unmatched Push.
	Pop()
}
