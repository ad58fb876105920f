package inference

import (
	"bufio"
	"io"
	"strings"
)

// Framing selects how raw payloads are delimited on the upstream body.
type Framing int

const (
	// FramingSSE is Server-Sent-Events: payloads arrive on "data: " lines.
	FramingSSE Framing = iota
	// FramingJSONArray is a streamed JSON array: one element per line with
	// leading "[" or "," and trailing "]" framing to strip.
	FramingJSONArray
)

const (
	ssePayloadPrefix     = "data: "
	scannerInitialBuffer = 12 * 1024
	scannerMaxBuffer     = 10 * 1024 * 1024
)

// Stream is an open upstream event source. Recv returns one raw payload per
// call with framing already stripped; io.EOF signals the upstream closed.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	framing Framing
	done    bool
}

// NewStream wraps an upstream response body.
func NewStream(body io.ReadCloser, framing Framing) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxBuffer)
	return &Stream{body: body, scanner: scanner, framing: framing}
}

// Recv returns the next raw payload. Empty lines, SSE event-name lines and
// comment lines are skipped; array framing characters are stripped.
func (s *Stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		payload, ok := s.extractPayload(s.scanner.Text())
		if ok {
			return payload, nil
		}
	}
	s.done = true
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *Stream) extractPayload(line string) (string, bool) {
	switch s.framing {
	case FramingJSONArray:
		trimmed := strings.TrimSpace(line)
		trimmed = strings.TrimPrefix(trimmed, "[")
		trimmed = strings.TrimPrefix(trimmed, ",")
		trimmed = strings.TrimSuffix(trimmed, "]")
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == "" {
			return "", false
		}
		return trimmed, true
	default:
		data, found := strings.CutPrefix(line, ssePayloadPrefix)
		if !found {
			return "", false
		}
		return data, true
	}
}

// Close releases the upstream body.
func (s *Stream) Close() error {
	s.done = true
	return s.body.Close()
}
