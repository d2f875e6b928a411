/*
Llmctl starts an interactive session driving the constraint engine's
in-process registry directly, without going through the inspection
service's HTTP surface. It is meant for manually exercising a grammar: start
a sequence, feed it bytes one command at a time, and watch bias/splice/stop
decisions and fork-group membership as they happen.

Usage:

	llmctl [flags]

The flags are:

	-v, --version
		Give the current version of the constraint engine and then exit.

	-d, --direct
		Force reading directly from the console as opposed to using GNU
		readline based routines for reading command input, even if launched
		in a tty with stdin and stdout.

	-c, --command COMMANDS
		Immediately run the given command(s) at start. Can be multiple
		commands separated by the ";" character.

Once a session has started, type HELP for the list of commands. To exit,
type QUIT.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dekarrin/llmctl/internal/controller"
	"github.com/dekarrin/llmctl/internal/demo"
	"github.com/dekarrin/llmctl/internal/grammar"
	"github.com/dekarrin/llmctl/internal/input"
	"github.com/dekarrin/llmctl/internal/tokenizer"
	"github.com/dekarrin/llmctl/internal/util"
	"github.com/dekarrin/llmctl/internal/version"
	"github.com/dekarrin/rosed"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
)

const (
	// ExitSuccess indicates a successful program execution.
	ExitSuccess = iota

	// ExitSessionError indicates an unsuccessful program execution due to a
	// problem during the session.
	ExitSessionError

	// ExitInitError indicates an unsuccessful program execution due to an
	// issue initializing the engine.
	ExitInitError
)

var (
	returnCode   = ExitSuccess
	flagVersion  = pflag.BoolP("version", "v", false, "Give the current version of the constraint engine and then exit.")
	forceDirect  = pflag.BoolP("direct", "d", false, "Force reading directly from stdin instead of going through GNU readline where possible.")
	startCommand = pflag.StringP("command", "c", "", "Execute the given commands immediately at start, separated by ';'.")
)

func main() {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			panic(fmt.Sprintf("unrecoverable panic occurred: %v", panicErr))
		} else {
			os.Exit(returnCode)
		}
	}()

	pflag.Parse()

	if *flagVersion {
		fmt.Printf("%s\n", version.Current)
		return
	}

	var startCommands []string
	if *startCommand != "" {
		startCommands = strings.Split(*startCommand, ";")
	}

	sess, err := newSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		returnCode = ExitInitError
		return
	}

	reader, err := newReader(*forceDirect)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		returnCode = ExitInitError
		return
	}
	defer reader.Close()

	if err := sess.runUntilQuit(reader, startCommands); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		returnCode = ExitSessionError
		return
	}
}

func newReader(direct bool) (input.CommandReader, error) {
	if direct || !isatty.IsTerminal(os.Stdin.Fd()) {
		return input.NewDirectReader(os.Stdin), nil
	}
	return input.NewInteractiveReader("llmctl> ")
}

// session holds the demo grammar/vocab and the registry driving it, and the
// one active top-level sequence the REPL is currently stepping.
type session struct {
	registry *controller.Registry
	tok      tokenizer.Greedy
	active   controller.SeqId
	hasSeq   bool
}

func newSession() (*session, error) {
	trie, eosID, err := demo.Vocab()
	if err != nil {
		return nil, fmt.Errorf("build vocabulary: %w", err)
	}
	g, err := grammar.Optimize(demo.Grammar())
	if err != nil {
		return nil, fmt.Errorf("optimize grammar: %w", err)
	}
	tok := tokenizer.Greedy{Trie: trie}

	factory := func(vars controller.VarStore) controller.Controller {
		return controller.NewGrammarController(trie, g, tok, vars).WithEOS(eosID)
	}

	return &session{registry: controller.NewRegistry(factory, controller.NopRecorder{}), tok: tok}, nil
}

func (s *session) runUntilQuit(r input.CommandReader, startCommands []string) error {
	for _, c := range startCommands {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if quit := s.dispatch(c); quit {
			return nil
		}
	}

	for {
		line, err := r.ReadCommand()
		if err != nil {
			return nil
		}
		if quit := s.dispatch(line); quit {
			return nil
		}
	}
}

// dispatch runs one command line and reports whether the session should end.
func (s *session) dispatch(line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd := strings.ToUpper(fields[0])
	args := fields[1:]

	switch cmd {
	case "QUIT", "EXIT":
		return true
	case "HELP":
		printHelp()
	case "START":
		s.cmdStart()
	case "FEED":
		s.cmdFeed(args)
	case "STATUS":
		s.cmdStatus()
	case "LIST":
		s.cmdList()
	case "SUSPEND":
		s.cmdSuspend()
	case "RESUME":
		s.cmdResume()
	default:
		fmt.Printf("unknown command %q; type HELP for the command list\n", fields[0])
	}
	return false
}

func printHelp() {
	fmt.Println(rosed.Edit(
		"START starts a fresh sequence against the demo grammar.\n" +
			"FEED TEXT feeds the given literal bytes to the active sequence's mid_process.\n" +
			"STATUS shows the active sequence's step count, suspension, and fork siblings.\n" +
			"LIST shows every live sequence in the registry.\n" +
			"SUSPEND / RESUME manually pause or unstick the active sequence.\n" +
			"QUIT ends the session.").Wrap(72).String())
}

func (s *session) cmdStart() {
	id, err := s.registry.Start(context.Background(), "")
	if err != nil {
		fmt.Printf("could not start sequence: %s\n", err.Error())
		return
	}
	s.active = id
	s.hasSeq = true
	fmt.Printf("started sequence %s\n", id)
}

func (s *session) cmdFeed(args []string) {
	if !s.hasSeq {
		fmt.Println("no active sequence; run START first")
		return
	}
	if len(args) == 0 {
		fmt.Println("usage: FEED TEXT")
		return
	}
	text := strings.Join(args, " ")

	pre, err := s.registry.PreProcess(context.Background(), s.active)
	if err != nil {
		fmt.Printf("pre_process failed: %s\n", err.Error())
		return
	}
	if pre.Stopped {
		fmt.Println("sequence has stopped")
		return
	}
	if pre.Result.Suspend {
		fmt.Println("sequence is suspended; run RESUME to unstick it")
		return
	}
	if len(pre.NewSeqs) > 0 {
		fmt.Printf("sequence forked into: %s\n", util.MakeTextList(seqIDStrings(pre.NewSeqs)))
	}

	tokens, err := s.tok.TokenizeBytes([]byte(text))
	if err != nil {
		fmt.Printf("could not tokenize %q: %s\n", text, err.Error())
		return
	}

	res, err := s.registry.MidProcess(context.Background(), s.active, controller.MidProcessArg{Tokens: tokens})
	if err != nil {
		fmt.Printf("mid_process failed: %s\n", err.Error())
		return
	}

	fmt.Printf("mid_process result: %+v\n", res)
}

func (s *session) cmdStatus() {
	if !s.hasSeq {
		fmt.Println("no active sequence")
		return
	}
	info, err := s.registry.Get(s.active)
	if err != nil {
		fmt.Printf("could not get sequence status: %s\n", err.Error())
		return
	}
	fmt.Printf("sequence %s: step=%d suspended=%v", info.ID, info.Step, info.Suspended)
	if len(info.Children) > 0 {
		fmt.Printf(" children=%s", util.MakeTextList(seqIDStrings(info.Children)))
	}
	fmt.Println()
}

func (s *session) cmdList() {
	all := s.registry.List()
	if len(all) == 0 {
		fmt.Println("no live sequences")
		return
	}

	data := make([][]string, 0, len(all))
	for _, info := range all {
		data = append(data, []string{
			info.ID.String(),
			fmt.Sprintf("%d", info.Step),
			fmt.Sprintf("%v", info.Suspended),
		})
	}

	tableOpts := rosed.Options{TableHeaders: true, NoTrailingLineSeparators: true}
	data = append([][]string{{"SEQUENCE", "STEP", "SUSPENDED"}}, data...)
	out := rosed.Edit("").InsertTableOpts(0, data, 80, tableOpts).String()
	fmt.Println(out)
}

func (s *session) cmdSuspend() {
	if !s.hasSeq {
		fmt.Println("no active sequence")
		return
	}
	if err := s.registry.Suspend(s.active); err != nil {
		fmt.Printf("could not suspend: %s\n", err.Error())
		return
	}
	fmt.Println("suspended")
}

func (s *session) cmdResume() {
	if !s.hasSeq {
		fmt.Println("no active sequence")
		return
	}
	if err := s.registry.Resume(s.active); err != nil {
		fmt.Printf("could not resume: %s\n", err.Error())
		return
	}
	fmt.Println("resumed")
}

func seqIDStrings(ids []controller.SeqId) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
