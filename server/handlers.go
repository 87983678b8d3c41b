package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hupe1980/archmesh"
	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/orchestrator"
	"github.com/hupe1980/archmesh/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

type intentRequest struct {
	Utterance string `json:"utterance"`
}

type intentResponse struct {
	Matched bool         `json:"matched"`
	Intent  *core.Intent `json:"intent,omitempty"`
}

type askRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	// Image is a base64 encoded photo.
	Image []byte `json:"image,omitempty"`
}

type askResponse struct {
	ConversationID string `json:"conversation_id"`
	orchestrator.Outcome
}

type decideRequest struct {
	ConversationID string   `json:"conversation_id"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	Roles          []string `json:"roles"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": s.mesh.Providers(),
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	data, err := s.readImage(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	analysis, err := s.mesh.Analyze(r.Context(), r.URL.Query().Get("conversation_id"), data)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Utterance) == "" {
		writeError(w, http.StatusBadRequest, errors.New("utterance is required"))
		return
	}
	it, ok := s.mesh.ParseIntent(req.Utterance)
	resp := intentResponse{Matched: ok}
	if ok {
		resp.Intent = &it
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" && len(req.Image) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("message or image is required"))
		return
	}
	id, out, err := s.mesh.AskSync(r.Context(), archmesh.AskRequest{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		Image:          req.Image,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{ConversationID: id, Outcome: out})
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	roles, err := parseRoles(req.Roles)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := s.mesh.Decide(r.Context(), req.ConversationID, orchestrator.DecideRequest{
		Question: req.Question,
		Options:  req.Options,
		Roles:    roles,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	roles, err := parseRoles(r.URL.Query()["role"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.mesh.Reset(r.Context(), chi.URLParam(r, "id"), roles...); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readImage accepts a raw body or a multipart form with an "image" field.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(s.maxBody); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		f, _, err := r.FormFile("image")
		if err != nil {
			return nil, fmt.Errorf("image field: %w", err)
		}
		defer func(f multipart.File) { _ = f.Close() }(f)
		return io.ReadAll(f)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty image body")
	}
	return data, nil
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseRoles(names []string) ([]core.AgentRole, error) {
	roles := make([]core.AgentRole, 0, len(names))
	for _, n := range names {
		r, err := core.ParseRole(n)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidDecision), errors.Is(err, core.ErrUnknownOption):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
