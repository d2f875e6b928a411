// Package input reads REPL command lines from either a plain stream or an
// interactive terminal.
package input

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// CommandReader is the common interface cmd/llmctl drives its REPL loop
// with, regardless of which implementation backs it.
type CommandReader interface {
	ReadCommand() (string, error)
	AllowBlank(allow bool)
	Close() error
}

// DirectCommandReader reads commands from any io.Reader directly, without
// sanitizing control or escape sequences. Use this when stdin is not a TTY
// (piped input, a script) or when -d/--direct forces it.
//
// DirectCommandReader should not be used directly; instead, create one with
// [NewDirectReader].
type DirectCommandReader struct {
	r             *bufio.Reader
	blanksAllowed bool
}

// InteractiveCommandReader reads commands from stdin using GNU-readline-style
// editing and history. Use this only when directly connected to a TTY.
//
// InteractiveCommandReader should not be used directly; instead, create one
// with [NewInteractiveReader].
type InteractiveCommandReader struct {
	rl            *readline.Instance
	blanksAllowed bool
	prompt        string
}

// NewDirectReader creates a DirectCommandReader over r. The returned
// CommandReader must have Close called on it before disposal.
func NewDirectReader(r io.Reader) *DirectCommandReader {
	return &DirectCommandReader{r: bufio.NewReader(r)}
}

// NewInteractiveReader creates an InteractiveCommandReader and initializes
// readline. The returned CommandReader must have Close called on it before
// disposal to properly tear down readline resources.
func NewInteractiveReader(prompt string) (*InteractiveCommandReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("create readline config: %w", err)
	}

	return &InteractiveCommandReader{rl: rl, prompt: prompt}, nil
}

// Close is here so DirectCommandReader satisfies CommandReader; it does
// nothing today but callers should still call it.
func (dcr *DirectCommandReader) Close() error {
	return nil
}

// Close tears down readline resources.
func (icr *InteractiveCommandReader) Close() error {
	return icr.rl.Close()
}

// ReadCommand reads the next line. It blocks until a non-blank line is read
// unless AllowBlank(true) was called. At end of input it returns "", io.EOF.
func (dcr *DirectCommandReader) ReadCommand() (string, error) {
	var line string
	var err error

	for line == "" {
		line, err = dcr.r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}

		line = strings.TrimSpace(line)

		if line == "" && dcr.blanksAllowed {
			return line, nil
		}
	}

	return line, nil
}

// ReadCommand reads the next line via readline. It blocks until a non-blank
// line is read unless AllowBlank(true) was called.
func (icr *InteractiveCommandReader) ReadCommand() (string, error) {
	var line string
	var err error

	for line == "" {
		line, err = icr.rl.Readline()
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}

		line = strings.TrimSpace(line)

		if line == "" && icr.blanksAllowed {
			return line, nil
		}
	}

	return line, nil
}

// AllowBlank sets whether a blank line is returned as-is. By default it is
// not, and ReadCommand blocks past blank lines instead.
func (dcr *DirectCommandReader) AllowBlank(allow bool) {
	dcr.blanksAllowed = allow
}

// AllowBlank sets whether a blank line is returned as-is.
func (icr *InteractiveCommandReader) AllowBlank(allow bool) {
	icr.blanksAllowed = allow
}

// SetPrompt updates the prompt text.
func (icr *InteractiveCommandReader) SetPrompt(p string) {
	icr.prompt = p
	icr.rl.SetPrompt(p)
}
