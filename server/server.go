// Package server implements the operator inspection service: a read-mostly
// HTTP surface over the sequence registry and run-log store, entirely
// separate from the host<->controller transport (that boundary is never
// crossed here; the registry is driven by whatever embeds it, typically a
// cmd/ binary wiring a real or simulated host loop). Mutating endpoints
// (suspend/resume/delete) require a bearer token from POST /login.
package server

import (
	"net/http"
	"time"

	"github.com/dekarrin/llmctl/internal/controller"
	"github.com/dekarrin/llmctl/server/auth"
	"github.com/dekarrin/llmctl/server/middle"
	"github.com/dekarrin/llmctl/server/result"
	"github.com/dekarrin/llmctl/server/runlog"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Server holds the dependencies the inspection endpoints need.
type Server struct {
	Registry    *controller.Registry
	Runs        runlog.Store
	Operator    *auth.Operator
	UnauthDelay time.Duration
}

// Router builds the chi router for the inspection service.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middle.DontPanic())

	r.Post("/login", s.handleLogin)
	r.Get("/sequences", s.handleListSequences)
	r.Get("/sequences/{id}", s.handleGetSequence)
	r.Get("/sequences/{id}/runlog", s.handleGetRunlog)

	r.Group(func(r chi.Router) {
		r.Use(middle.RequireAuth(s.Operator, s.UnauthDelay))
		r.Post("/sequences/{id}/suspend", s.handleSuspend)
		r.Post("/sequences/{id}/resume", s.handleResume)
		r.Delete("/sequences/{id}", s.handleDelete)
	})

	return r
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body loginRequest
	if err := parseJSON(req, &body); err != nil {
		r := result.BadRequest("Malformed login request", err.Error())
		r.WriteResponse(w)
		r.Log(req)
		return
	}

	tok, err := s.Operator.Login(body.Password)
	if err != nil {
		r := result.Unauthorized("Incorrect operator password", err.Error())
		time.Sleep(s.UnauthDelay)
		r.WriteResponse(w)
		r.Log(req)
		return
	}

	r := result.OK(loginResponse{Token: tok}, "operator logged in")
	r.WriteResponse(w)
	r.Log(req)
}

type sequenceView struct {
	ID        string   `json:"id"`
	Parent    string   `json:"parent,omitempty"`
	Children  []string `json:"children,omitempty"`
	Step      int      `json:"step"`
	Suspended bool     `json:"suspended"`
}

func toSequenceView(info controller.SeqInfo) sequenceView {
	v := sequenceView{ID: info.ID.String(), Step: info.Step, Suspended: info.Suspended}
	if info.HasParent {
		v.Parent = info.Parent.String()
	}
	for _, c := range info.Children {
		v.Children = append(v.Children, c.String())
	}
	return v
}

func (s *Server) handleListSequences(w http.ResponseWriter, req *http.Request) {
	all := s.Registry.List()
	views := make([]sequenceView, 0, len(all))
	for _, info := range all {
		views = append(views, toSequenceView(info))
	}
	r := result.OK(views, "listed %d sequences", len(views))
	r.WriteResponse(w)
	r.Log(req)
}

func (s *Server) handleGetSequence(w http.ResponseWriter, req *http.Request) {
	id, err := requireSeqID(req)
	if err != nil {
		r := result.BadRequest(err.Error())
		r.WriteResponse(w)
		r.Log(req)
		return
	}

	info, err := s.Registry.Get(id)
	if err != nil {
		r := result.NotFound(err.Error())
		r.WriteResponse(w)
		r.Log(req)
		return
	}

	r := result.OK(toSequenceView(info), "got sequence %s", id)
	r.WriteResponse(w)
	r.Log(req)
}

func (s *Server) handleGetRunlog(w http.ResponseWriter, req *http.Request) {
	id, err := requireSeqID(req)
	if err != nil {
		r := result.BadRequest(err.Error())
		r.WriteResponse(w)
		r.Log(req)
		return
	}

	entries, err := s.Runs.Runs().GetAllBySeq(req.Context(), uuid.UUID(id))
	if err != nil {
		r := result.InternalServerError(err.Error())
		r.WriteResponse(w)
		r.Log(req)
		return
	}

	r := result.OK(entries, "got %d run log entries for sequence %s", len(entries), id)
	r.WriteResponse(w)
	r.Log(req)
}

func (s *Server) handleSuspend(w http.ResponseWriter, req *http.Request) {
	id, err := requireSeqID(req)
	if err != nil {
		r := result.BadRequest(err.Error())
		r.WriteResponse(w)
		r.Log(req)
		return
	}
	if err := s.Registry.Suspend(id); err != nil {
		r := result.NotFound(err.Error())
		r.WriteResponse(w)
		r.Log(req)
		return
	}
	r := result.NoContent("suspended sequence %s", id)
	r.WriteResponse(w)
	r.Log(req)
}

func (s *Server) handleResume(w http.ResponseWriter, req *http.Request) {
	id, err := requireSeqID(req)
	if err != nil {
		r := result.BadRequest(err.Error())
		r.WriteResponse(w)
		r.Log(req)
		return
	}
	if err := s.Registry.Resume(id); err != nil {
		r := result.NotFound(err.Error())
		r.WriteResponse(w)
		r.Log(req)
		return
	}
	r := result.NoContent("resumed sequence %s", id)
	r.WriteResponse(w)
	r.Log(req)
}

func (s *Server) handleDelete(w http.ResponseWriter, req *http.Request) {
	id, err := requireSeqID(req)
	if err != nil {
		r := result.BadRequest(err.Error())
		r.WriteResponse(w)
		r.Log(req)
		return
	}
	if err := s.Registry.Delete(id); err != nil {
		r := result.NotFound(err.Error())
		r.WriteResponse(w)
		r.Log(req)
		return
	}
	if err := s.Runs.Runs().DeleteBySeq(req.Context(), uuid.UUID(id)); err != nil {
		r := result.InternalServerError(err.Error())
		r.WriteResponse(w)
		r.Log(req)
		return
	}
	r := result.NoContent("deleted sequence %s", id)
	r.WriteResponse(w)
	r.Log(req)
}

func requireSeqID(req *http.Request) (controller.SeqId, error) {
	val, err := getURLParam(req, "id", uuid.Parse)
	if err != nil {
		return controller.SeqId{}, err
	}
	return controller.SeqId(val), nil
}
