package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentserve-dev/agentserve/agent"
	"github.com/agentserve-dev/agentserve/pkg/observability"
)

// handleStream serves one run as Server-Sent Events. Each event is one
// JSON data frame; error events additionally carry `event: error` so
// EventSource clients can dispatch on them. The stream ends with a
// `data: [DONE]` sentinel after the terminal event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "SSE_UNSUPPORTED", "streaming not supported")
		return
	}

	req, err := s.decodeInvoke(r)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	start := time.Now()
	stream, err := s.engine.Stream(r.Context(), req)
	if err != nil {
		observability.RecordInvocation(req.AgentID, "stream", "error", time.Since(start))
		writeError(w, err)
		return
	}
	defer func() { _ = stream.Close() }()

	observability.StreamOpened()
	defer observability.StreamClosed()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	status := "ok"
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Client gone or request cancelled; nothing left to write.
			status = "cancelled"
			break
		}

		observability.RecordStreamEvent(req.AgentID, string(ev.Kind))
		if ev.Kind == agent.EventError {
			status = "error"
		}
		if ev.Kind == agent.EventMessage && ev.Message != nil {
			if cat := ev.Message.MetadataString(agent.MetaModeration, ""); cat != "" {
				observability.RecordModerationFlag(req.AgentID, cat)
			}
		}

		if err := writeEvent(w, ev); err != nil {
			status = "cancelled"
			break
		}
		flusher.Flush()
	}

	if status == "ok" {
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}
	observability.RecordInvocation(req.AgentID, "stream", status, time.Since(start))
}

func writeEvent(w io.Writer, ev agent.StreamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if ev.Kind == agent.EventError {
		_, err = fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
