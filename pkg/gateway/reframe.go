package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/papercomputeco/promptgate/pkg/llm"
	"github.com/papercomputeco/promptgate/pkg/ollama"
)

// State is the re-framer's position in its state machine.
type State int

const (
	// StateStreaming is the initial state while lines are consumed.
	StateStreaming State = iota
	// StateDone is terminal: the upstream finished, with or without done:true.
	StateDone
	// StateFailed is terminal: one error event was emitted.
	StateFailed
	// StateCanceled is terminal: the downstream went away or the context
	// was canceled; nothing more is written.
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Sink receives events in production order. A non-nil error means the
// downstream can no longer accept writes.
type Sink func(Event) error

// Lines is a pull interface over raw upstream lines, shaped like bufio.Scanner.
type Lines interface {
	Next() bool
	Line() []byte
	Err() error
}

// Summary describes how one stream ended.
type Summary struct {
	State State

	// Fragments counts emitted response events.
	Fragments int

	// Skipped counts non-blank lines that did not decode.
	Skipped int

	// Truncated is set when the upstream closed without done:true.
	Truncated bool

	// Final is the done:true chunk, carrying the engine's metrics.
	Final *llm.StreamChunk

	// Err is the upstream or downstream error that ended the stream.
	Err error
}

// Reframe consumes lines until a done chunk, the end of the body, an
// upstream read error or a sink failure, emitting one event per fragment.
func Reframe(ctx context.Context, lines Lines, sink Sink) Summary {
	s := Summary{State: StateStreaming}

	for s.State == StateStreaming && lines.Next() {
		line := bytes.TrimSpace(lines.Line())
		if len(line) == 0 {
			continue
		}

		var chunk llm.StreamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			s.Skipped++
			continue
		}

		if chunk.Response != nil {
			if err := sink(ResponseEvent(*chunk.Response)); err != nil {
				return canceled(s, err)
			}
			s.Fragments++
		}

		if chunk.Done {
			if err := sink(DoneEvent()); err != nil {
				return canceled(s, err)
			}
			s.State = StateDone
			s.Final = &chunk
		}
	}

	if s.State != StateStreaming {
		return s
	}

	if err := lines.Err(); err != nil {
		if ctx.Err() != nil {
			return canceled(s, ctx.Err())
		}
		return fail(s, &ollama.ConnectionError{Err: err}, sink)
	}

	s.State = StateDone
	s.Truncated = true
	return s
}

// Fail handles an error raised before the first line: exactly one error
// event is emitted, unless the context was canceled.
func Fail(ctx context.Context, err error, sink Sink) Summary {
	s := Summary{State: StateStreaming}
	if ctx.Err() != nil {
		return canceled(s, err)
	}
	return fail(s, err, sink)
}

// ErrorMessage maps an upstream failure to the text of its error event.
func ErrorMessage(err error) string {
	var statusErr *ollama.StatusError
	if errors.As(err, &statusErr) {
		return "Error communicating with Ollama"
	}

	var connErr *ollama.ConnectionError
	if errors.As(err, &connErr) {
		return "Connection error: " + connErr.Err.Error()
	}

	return err.Error()
}

func fail(s Summary, err error, sink Sink) Summary {
	s.Err = err
	if sinkErr := sink(ErrorEvent(ErrorMessage(err))); sinkErr != nil {
		return canceled(s, sinkErr)
	}
	s.State = StateFailed
	return s
}

func canceled(s Summary, err error) Summary {
	s.State = StateCanceled
	s.Err = err
	return s
}
