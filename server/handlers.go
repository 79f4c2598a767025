package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentserve-dev/agentserve/agent"
	"github.com/agentserve-dev/agentserve/engine"
	"github.com/agentserve-dev/agentserve/pkg/observability"
	"github.com/agentserve-dev/agentserve/pkg/thread"
)

// invokeRequest is the wire shape of an invocation request.
type invokeRequest struct {
	Message     string  `json:"message"`
	ThreadID    string  `json:"thread_id,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// invokeResponse is the wire shape of a completed blocking invocation.
type invokeResponse struct {
	RunID    string        `json:"run_id"`
	ThreadID string        `json:"thread_id"`
	Message  agent.Message `json:"message"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorStatus(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func writeError(w http.ResponseWriter, err error) {
	var agentErr *agent.Error
	if errors.As(err, &agentErr) {
		writeErrorStatus(w, statusForCode(agentErr.Code), string(agentErr.Code), agentErr.Message)
		return
	}
	if errors.Is(err, thread.ErrThreadNotFound) {
		writeErrorStatus(w, http.StatusNotFound, "THREAD_NOT_FOUND", "no such thread")
		return
	}
	writeErrorStatus(w, http.StatusInternalServerError, "INTERNAL", err.Error())
}

func statusForCode(code agent.Code) int {
	switch code {
	case agent.CodeUnknownAgent:
		return http.StatusNotFound
	case agent.CodeDuplicateAgent:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// agentID resolves the agent from the route, falling back to the default
// for the unprefixed routes.
func (s *Server) agentID(r *http.Request) string {
	if id := r.PathValue("agent"); id != "" {
		return id
	}
	return s.opts.DefaultAgent
}

func (s *Server) decodeInvoke(r *http.Request) (engine.Request, error) {
	var req invokeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		return engine.Request{}, fmt.Errorf("decode request: %w", err)
	}
	if req.Message == "" {
		return engine.Request{}, errors.New("message is required")
	}
	return engine.Request{
		AgentID:  s.agentID(r),
		ThreadID: req.ThreadID,
		Message:  req.Message,
		Options: agent.RunOptions{
			Model:       req.Model,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		},
	}, nil
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.engine.Agents()})
}

func (s *Server) handleDescribeAgent(w http.ResponseWriter, r *http.Request) {
	desc, err := s.engine.Describe(r.PathValue("agent"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.engine.History(r.Context(), r.PathValue("thread"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": history})
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeInvoke(r)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	start := time.Now()
	res, err := s.engine.Invoke(r.Context(), req)
	if err != nil {
		observability.RecordInvocation(req.AgentID, "invoke", "error", time.Since(start))
		writeError(w, err)
		return
	}
	observability.RecordInvocation(req.AgentID, "invoke", "ok", time.Since(start))
	if res.Message.MetadataString(agent.MetaModeration, "") != "" {
		observability.RecordModerationFlag(req.AgentID, res.Message.MetadataString(agent.MetaModeration, ""))
	}

	writeJSON(w, http.StatusOK, invokeResponse{
		RunID:    res.RunID,
		ThreadID: res.ThreadID,
		Message:  res.Message,
	})
}
