// Package ctrlerr holds the error types and sentinel causes used across the
// constraint engine. A FatalError carries both the technical Error() string
// (for logs) and a short operator-visible reason distinct from it, mirroring
// the dual game/technical message split the interpreter errors used
// elsewhere in this codebase family.
package ctrlerr

import (
	"errors"
	"fmt"
)

var (
	// ErrGrammarBuild indicates a grammar could not be optimized or compiled.
	// Raised during init_prompt; fatal for the sequence.
	ErrGrammarBuild = errors.New("grammar could not be built")

	// ErrReject indicates the parser refused a byte that tokens already
	// committed to the KV cache decode to. Always fatal.
	ErrReject = errors.New("parser rejected already-committed bytes")

	// ErrInvariant indicates an internal invariant was violated: the
	// llm_suffix/grm_suffix prefix ordering failed, an out-of-range token id
	// was seen, a negative backtrack was computed, or a splice was both
	// zero-backtrack and empty. Fatal; surfaced as Stop with a diagnostic.
	ErrInvariant = errors.New("controller invariant violated")

	// ErrBadArgument indicates a caller supplied a malformed argument across
	// a lifecycle or inspection-API boundary, e.g. a mixed-length
	// attention_masks list.
	ErrBadArgument = errors.New("bad argument")

	// ErrNotFound indicates a requested entity (sequence, run, step) does not
	// exist in the registry or store.
	ErrNotFound = errors.New("not found")

	// ErrDB indicates a failure talking to the run-log persistence layer.
	ErrDB = errors.New("a storage error occurred")
)

// FatalError is an error that stops a single sequence. It carries a causes
// chain compatible with errors.Is/errors.As, plus a short operator-visible
// Reason distinct from the (possibly more verbose) Error() string.
type FatalError struct {
	msg    string
	reason string
	cause  []error
}

// New creates a FatalError with the given technical message and operator
// reason, wrapping zero or more causes. If reason is empty, msg is used as
// the operator reason as well.
func New(msg, reason string, causes ...error) *FatalError {
	if reason == "" {
		reason = msg
	}
	e := &FatalError{msg: msg, reason: reason}
	if len(causes) > 0 {
		e.cause = append(e.cause, causes...)
	}
	return e
}

// Newf is like New but builds msg from a format string; reason is left equal
// to the formatted message.
func Newf(format string, a ...interface{}) *FatalError {
	return New(fmt.Sprintf(format, a...), "")
}

func (e *FatalError) Error() string {
	if e.msg == "" && len(e.cause) > 0 {
		return e.cause[0].Error()
	}
	if len(e.cause) > 0 {
		return e.msg + ": " + e.cause[0].Error()
	}
	return e.msg
}

// Reason is the short, operator-visible diagnostic for this error. Unlike
// Error(), it never includes wrapped-cause text.
func (e *FatalError) Reason() string {
	return e.reason
}

// Unwrap exposes the wrapped causes to errors.Is/errors.As.
func (e *FatalError) Unwrap() []error {
	return e.cause
}

// Invariant is a convenience constructor for ErrInvariant-caused FatalErrors.
func Invariant(reason string) *FatalError {
	return New(reason, reason, ErrInvariant)
}

// Invariantf is like Invariant but builds the reason from a format string.
func Invariantf(format string, a ...interface{}) *FatalError {
	return Invariant(fmt.Sprintf(format, a...))
}

// Rejectf builds an ErrReject-caused FatalError from a format string.
func Rejectf(format string, a ...interface{}) *FatalError {
	msg := fmt.Sprintf(format, a...)
	return New(msg, msg, ErrReject)
}

// GrammarBuildf builds an ErrGrammarBuild-caused FatalError from a format
// string.
func GrammarBuildf(format string, a ...interface{}) *FatalError {
	msg := fmt.Sprintf(format, a...)
	return New(msg, msg, ErrGrammarBuild)
}

// BadArgument is a convenience constructor for ErrBadArgument-caused
// FatalErrors.
func BadArgument(reason string) *FatalError {
	return New(reason, reason, ErrBadArgument)
}

// BadArgumentf is like BadArgument but builds the reason from a format
// string.
func BadArgumentf(format string, a ...interface{}) *FatalError {
	return BadArgument(fmt.Sprintf(format, a...))
}

// NotFound is a convenience constructor for ErrNotFound-caused FatalErrors.
func NotFound(reason string) *FatalError {
	return New(reason, reason, ErrNotFound)
}

// NotFoundf is like NotFound but builds the reason from a format string.
func NotFoundf(format string, a ...interface{}) *FatalError {
	return NotFound(fmt.Sprintf(format, a...))
}
