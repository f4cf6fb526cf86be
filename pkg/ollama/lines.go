package ollama

import (
	"bufio"
	"io"
	"sync"
)

// maxLineSize bounds a single NDJSON line.
const maxLineSize = 1 << 20

// LineStream is a forward-only, single-use sequence of raw lines read from a
// streaming response body. It follows the bufio.Scanner protocol:
//
//	for s.Next() {
//		line := s.Line()
//	}
//	if err := s.Err(); err != nil { ... }
type LineStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	once    sync.Once
}

// NewLineStream wraps body. The stream owns body and closes it on Close.
func NewLineStream(body io.ReadCloser) *LineStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &LineStream{body: body, scanner: scanner}
}

// Next advances to the next line. It returns false at the end of the body or
// on a read error.
func (s *LineStream) Next() bool {
	return s.scanner.Scan()
}

// Line returns the current line. The slice is only valid until the next call
// to Next.
func (s *LineStream) Line() []byte {
	return s.scanner.Bytes()
}

// Err returns the first non-EOF read error.
func (s *LineStream) Err() error {
	return s.scanner.Err()
}

// Close closes the underlying body. It is safe to call more than once.
func (s *LineStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.body.Close()
	})
	return err
}
