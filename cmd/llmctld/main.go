/*
Llmctld starts the constraint engine's operator inspection service and
begins listening for HTTP connections.

Usage:

	llmctld [flags]
	llmctld [flags] -l [[ADDRESS]:PORT]

The flags are:

	-v, --version
		Give the current version and then exit.

	-l, --listen LISTEN_ADDRESS
		Listen on the given address. Must be in BIND_ADDRESS:PORT or :PORT
		format. If not given, defaults to the value of environment variable
		LLMCTL_LISTEN_ADDRESS, and if that is not given, to localhost:8080.

	-s, --secret TOKEN_SECRET
		Use the provided secret for signing bearer tokens. If not given,
		defaults to the value of environment variable LLMCTL_TOKEN_SECRET. If
		no secret is specified, a random one is generated, invalidating all
		tokens as soon as the server shuts down.

	-p, --password OPERATOR_PASSWORD
		Set the operator password used to obtain a bearer token via
		POST /login. If not given, defaults to the value of environment
		variable LLMCTL_OPERATOR_PASSWORD. If neither is set, a random
		password is generated and printed to stderr once at startup.

	--db DRIVER[:PARAMS]
		Use the given run-log storage driver. DRIVER must be one of: inmem,
		sqlite. sqlite needs a path to the database file, e.g.
		sqlite:runs.db. Defaults to inmem.

	-c, --config PATH
		Load engine tunables (vocab path, token budgets, log level) from the
		given TOML file instead of the built-in demo configuration.
*/
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dekarrin/llmctl/internal/config"
	"github.com/dekarrin/llmctl/internal/controller"
	"github.com/dekarrin/llmctl/internal/demo"
	"github.com/dekarrin/llmctl/internal/grammar"
	"github.com/dekarrin/llmctl/internal/tokenizer"
	"github.com/dekarrin/llmctl/internal/version"
	"github.com/dekarrin/llmctl/server"
	"github.com/dekarrin/llmctl/server/auth"
	"github.com/dekarrin/llmctl/server/runlog"
	"github.com/dekarrin/llmctl/server/runlog/inmem"
	"github.com/dekarrin/llmctl/server/runlog/sqlite"
	"github.com/spf13/pflag"
)

const (
	EnvListen   = "LLMCTL_LISTEN_ADDRESS"
	EnvSecret   = "LLMCTL_TOKEN_SECRET"
	EnvPassword = "LLMCTL_OPERATOR_PASSWORD"
)

var (
	flagVersion  = pflag.BoolP("version", "v", false, "Give the current version and then exit.")
	flagListen   = pflag.StringP("listen", "l", "", "Listen on the given address.")
	flagSecret   = pflag.StringP("secret", "s", "", "Use the given secret for bearer token signing.")
	flagPassword = pflag.StringP("password", "p", "", "Set the operator password.")
	flagDB       = pflag.String("db", "", "Use the given run-log storage driver.")
	flagConfig   = pflag.StringP("config", "c", "", "Load engine tunables from the given TOML file.")
)

func main() {
	pflag.Parse()

	if *flagVersion {
		fmt.Printf("llmctld (constraint engine v%s)\n", version.Current)
		return
	}

	if len(pflag.Args()) > 0 {
		fmt.Fprintf(os.Stderr, "Too many arguments\nDo -h for help.\n")
		os.Exit(1)
	}

	addr, err := resolveListenAddr()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\nDo -h for help.\n", err.Error())
		os.Exit(1)
	}

	secret := resolveSecret()
	password, generated := resolvePassword()
	if generated {
		fmt.Fprintf(os.Stderr, "generated operator password: %s\n", password)
	}

	cfg := resolveConfig()
	log.Printf("starting with log level %s", cfg.LogLevel)

	store, err := openStore(*flagDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open run-log store: %s\n", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	op, err := auth.NewOperator(secret, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not initialize operator credential: %s\n", err.Error())
		os.Exit(1)
	}

	trie, eosID, err := demo.Vocab()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not build vocabulary: %s\n", err.Error())
		os.Exit(1)
	}
	g, err := grammar.Optimize(demo.Grammar())
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not optimize grammar: %s\n", err.Error())
		os.Exit(1)
	}
	tok := tokenizer.Greedy{Trie: trie}

	factory := func(vars controller.VarStore) controller.Controller {
		return controller.NewGrammarController(trie, g, tok, vars).WithEOS(eosID)
	}
	recorder := server.NewStoreRecorder(store)
	registry := controller.NewRegistry(factory, recorder)

	srv := &server.Server{
		Registry:    registry,
		Runs:        store,
		Operator:    op,
		UnauthDelay: time.Second,
	}

	log.Printf("inspection service listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		log.Fatal(err)
	}
}

func resolveListenAddr() (string, error) {
	listenAddr := os.Getenv(EnvListen)
	if pflag.Lookup("listen").Changed {
		listenAddr = *flagListen
	}
	if listenAddr == "" {
		return "localhost:8080", nil
	}
	bindParts := strings.SplitN(listenAddr, ":", 2)
	if len(bindParts) != 2 {
		return "", fmt.Errorf("listen address is not in ADDRESS:PORT or :PORT format")
	}
	if _, err := strconv.Atoi(bindParts[1]); err != nil {
		return "", fmt.Errorf("%q is not a valid port number", bindParts[1])
	}
	return listenAddr, nil
}

func resolveSecret() []byte {
	secret := os.Getenv(EnvSecret)
	if pflag.Lookup("secret").Changed {
		secret = *flagSecret
	}
	if secret != "" {
		return []byte(secret)
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("could not generate random token secret: %s", err)
	}
	return buf
}

func resolvePassword() (string, bool) {
	password := os.Getenv(EnvPassword)
	if pflag.Lookup("password").Changed {
		password = *flagPassword
	}
	if password != "" {
		return password, false
	}
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("could not generate random operator password: %s", err)
	}
	return hex.EncodeToString(buf), true
}

func resolveConfig() config.Engine {
	if *flagConfig == "" {
		return config.Default()
	}
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		log.Fatalf("could not load config: %s", err)
	}
	return cfg
}

func openStore(dbFlag string) (runlog.Store, error) {
	driver, param, _ := strings.Cut(dbFlag, ":")
	switch driver {
	case "", "inmem":
		return inmem.NewStore(), nil
	case "sqlite":
		if param == "" {
			return nil, fmt.Errorf("sqlite driver requires a database file path, e.g. sqlite:runs.db")
		}
		return sqlite.NewStore(param)
	default:
		return nil, fmt.Errorf("unknown run-log storage driver %q", driver)
	}
}
