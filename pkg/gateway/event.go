package gateway

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Event is one outbound SSE payload. Exactly one of the three shapes is
// used: {"response": "..."}, {"done": true} or {"error": "..."}.
type Event struct {
	Response *string `json:"response,omitempty"`
	Done     bool    `json:"done,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// ResponseEvent carries a generated text fragment.
func ResponseEvent(text string) Event {
	return Event{Response: &text}
}

// DoneEvent marks a successful end of generation.
func DoneEvent() Event {
	return Event{Done: true}
}

// ErrorEvent carries a human-readable failure message.
func ErrorEvent(msg string) Event {
	return Event{Error: msg}
}

// Kind names the event shape: "response", "done" or "error".
func (e Event) Kind() string {
	switch {
	case e.Error != "":
		return "error"
	case e.Done:
		return "done"
	default:
		return "response"
	}
}

// MarshalSSE frames the event as a single "data:" line followed by a blank
// line. JSON string escaping keeps quotes and newlines inside the line.
func (e Event) MarshalSSE() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("data: ")

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	// Encode terminated the JSON with one newline, the frame needs two.
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteTo writes the framed event to w.
func (e Event) WriteTo(w io.Writer) (int64, error) {
	frame, err := e.MarshalSSE()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(frame)
	return int64(n), err
}

// DecodeEvents reads an SSE stream and calls fn for every event in order.
// Fields other than "data" and comment lines are ignored. Decoding stops at
// the first error returned by fn.
func DecodeEvents(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var data bytes.Buffer
	dispatch := func() error {
		if data.Len() == 0 {
			return nil
		}
		defer data.Reset()

		var ev Event
		if err := json.Unmarshal(data.Bytes(), &ev); err != nil {
			return fmt.Errorf("decode event %q: %w", data.String(), err)
		}
		return fn(ev)
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			if err := dispatch(); err != nil {
				return err
			}
			continue
		}

		value, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			continue
		}
		value = bytes.TrimPrefix(value, []byte(" "))
		if data.Len() > 0 {
			data.WriteByte('\n')
		}
		data.Write(value)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read event stream: %w", err)
	}

	// a final event without the trailing blank line
	return dispatch()
}
