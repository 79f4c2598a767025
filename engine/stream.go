package engine

import (
	"context"
	"io"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentserve-dev/agentserve/agent"
)

// Stream delivers one run's event sequence. Consumers call Recv until it
// returns io.EOF, which happens after the terminal event has been
// delivered, and should Close when abandoning the stream early.
type Stream struct {
	// RunID and ThreadID are fixed before the first event.
	RunID    string
	ThreadID string

	ctx       context.Context
	cancel    context.CancelFunc
	events    chan agent.StreamEvent
	closeOnce sync.Once
	done      chan struct{}
}

func newStream(ctx context.Context, runID, threadID string) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	return &Stream{
		RunID:    runID,
		ThreadID: threadID,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan agent.StreamEvent, 64),
		done:     make(chan struct{}),
	}
}

// Recv returns the next event, io.EOF after the terminal event, or the
// context's error when the run was cancelled.
func (s *Stream) Recv() (agent.StreamEvent, error) {
	select {
	case ev, ok := <-s.events:
		if !ok {
			return agent.StreamEvent{}, io.EOF
		}
		return ev, nil
	case <-s.ctx.Done():
		return agent.StreamEvent{}, s.ctx.Err()
	}
}

// Close abandons the stream. The producing goroutine observes the
// cancellation and stops without persisting.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
	})
	return nil
}

// Done is closed once the producing goroutine has fully finished,
// including the persistence step.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// send delivers ev to the consumer, failing when the consumer is gone.
func (s *Stream) send(ev agent.StreamEvent) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	case s.events <- ev:
		return nil
	}
}

// finish closes the event channel; no events may be sent afterwards.
func (s *Stream) finish() {
	close(s.events)
	close(s.done)
}

// Stream starts a streaming invocation. Token and custom_update events are
// forwarded as the graph produces them, followed by exactly one terminal
// sequence: the moderated assistant message and an end event on success,
// or a single error event on failure. The checkpoint is saved only on the
// success path, after moderation, before the end event.
func (e *Engine) Stream(ctx context.Context, req Request) (*Stream, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Stream", trace.WithAttributes(
		attribute.String("agent.id", req.AgentID),
	))

	r, err := e.prepare(ctx, req)
	if err != nil {
		span.End()
		return nil, err
	}
	span.SetAttributes(attribute.String("run.id", r.runID))

	s := newStream(ctx, r.runID, r.threadID)

	go func() {
		defer span.End()
		defer s.finish()

		emit := func(ev agent.StreamEvent) error {
			ev.RunID = r.runID
			return s.send(ev)
		}

		result, err := r.graph.Stream(s.ctx, r.runInput(req), emit)
		if err != nil {
			if s.ctx.Err() != nil {
				// Consumer is gone; nobody can observe an error event.
				return
			}
			wrapped := e.executionError(err, r, req.AgentID)
			_ = s.send(agent.ErrorEvent(r.runID, wrapped.Error()))
			return
		}

		if s.ctx.Err() != nil {
			// Consumer closed after the graph finished; do not persist.
			return
		}

		final, err := e.finalize(s.ctx, r, req.AgentID, result)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			_ = s.send(agent.ErrorEvent(r.runID, err.Error()))
			return
		}

		msgEv := agent.MessageEvent(r.runID, &final)
		msgEv.ThreadID = r.threadID
		if err := s.send(msgEv); err != nil {
			return
		}
		endEv := agent.EndEvent(r.runID)
		endEv.ThreadID = r.threadID
		_ = s.send(endEv)
	}()

	return s, nil
}
