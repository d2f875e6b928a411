package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dekarrin/llmctl/internal/controller"
	"github.com/dekarrin/llmctl/internal/demo"
	"github.com/dekarrin/llmctl/internal/grammar"
	"github.com/dekarrin/llmctl/internal/tokenizer"
	"github.com/dekarrin/llmctl/server/auth"
	"github.com/dekarrin/llmctl/server/runlog/inmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	trie, eosID, err := demo.Vocab()
	require.NoError(t, err)
	g, err := grammar.Optimize(demo.Grammar())
	require.NoError(t, err)
	tok := tokenizer.Greedy{Trie: trie}

	factory := func(vars controller.VarStore) controller.Controller {
		return controller.NewGrammarController(trie, g, tok, vars).WithEOS(eosID)
	}
	store := inmem.NewStore()
	registry := controller.NewRegistry(factory, NewStoreRecorder(store))

	op, err := auth.NewOperator([]byte("test-secret"), "swordfish")
	require.NoError(t, err)

	return &Server{Registry: registry, Runs: store, Operator: op, UnauthDelay: 0}
}

func TestHandleListSequencesStartsEmpty(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/sequences", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var views []sequenceView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	assert.Empty(t, views)
}

func TestHandleLoginThenMutatingEndpointRequiresToken(t *testing.T) {
	s := newTestServer(t)

	id, err := s.Registry.Start(context.Background(), "")
	require.NoError(t, err)

	// no token: rejected
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sequences/"+id.String()+"/suspend", nil)
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// login
	body, _ := json.Marshal(loginRequest{Password: "swordfish"})
	loginW := httptest.NewRecorder()
	loginReq := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	loginReq.Header.Set("Content-Type", "application/json")
	s.Router().ServeHTTP(loginW, loginReq)
	require.Equal(t, http.StatusOK, loginW.Code)

	var loginResp loginResponse
	require.NoError(t, json.Unmarshal(loginW.Body.Bytes(), &loginResp))
	assert.NotEmpty(t, loginResp.Token)

	// with token: accepted
	authedW := httptest.NewRecorder()
	authedReq := httptest.NewRequest(http.MethodPost, "/sequences/"+id.String()+"/suspend", nil)
	authedReq.Header.Set("Authorization", "Bearer "+loginResp.Token)
	s.Router().ServeHTTP(authedW, authedReq)
	assert.Equal(t, http.StatusNoContent, authedW.Code)

	info, err := s.Registry.Get(id)
	require.NoError(t, err)
	assert.True(t, info.Suspended)
}

func TestHandleLoginRejectsWrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.UnauthDelay = time.Millisecond

	body, _ := json.Marshal(loginRequest{Password: "nope"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleGetSequenceUnknownReturnsNotFound(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sequences/"+controller.NewSeqId().String(), nil)
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
