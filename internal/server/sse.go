package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// commentReplacer escapes newlines in SSE comment fields to maintain protocol integrity.
// SSE protocol requires multi-line comments to prefix each line with ":".
var commentReplacer = strings.NewReplacer(
	"\n", "\n: ",
	"\r", "\\r",
)

// Pre-allocated byte slices for SSE formatting to eliminate allocations on every write.
var (
	sseIDPrefix      = []byte("id: ")
	sseEventPrefix   = []byte("event: ")
	sseDataPrefix    = []byte("data: ")
	sseCommentPrefix = []byte(": ")
	sseNewline       = []byte("\n")
	sseTerminator    = []byte("\n\n")
)

// SSEWriter wraps http.ResponseWriter with Server-Sent Events protocol methods.
// Handles JSON marshaling, event formatting, and flushing for streaming responses.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter validates flushing support and sets required SSE headers.
// Returns error if the ResponseWriter doesn't implement http.Flusher,
// which is required for streaming responses.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter doesn't implement http.Flusher")
	}

	w.Header().Set("Content-Type", "text/event-stream;charset=utf-8")
	w.Header().Set("Connection", "keep-alive")

	// Allow caller to override Cache-Control for custom caching strategies
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-cache")
	}

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent marshals payload to JSON and writes a named SSE event with an
// id field, so reconnecting clients can spot gaps. Flushes immediately.
func (s *SSEWriter) WriteEvent(id, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if id != "" {
		if _, err := s.w.Write(sseIDPrefix); err != nil {
			return err
		}
		if _, err := s.w.Write([]byte(id)); err != nil {
			return err
		}
		if _, err := s.w.Write(sseNewline); err != nil {
			return err
		}
	}

	if event != "" {
		if _, err := s.w.Write(sseEventPrefix); err != nil {
			return err
		}
		if _, err := s.w.Write([]byte(event)); err != nil {
			return err
		}
		if _, err := s.w.Write(sseNewline); err != nil {
			return err
		}
	}

	if _, err := s.w.Write(sseDataPrefix); err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if _, err := s.w.Write(sseTerminator); err != nil {
		return err
	}

	s.flusher.Flush()
	return nil
}

// WriteComment writes an SSE comment line (begins with ':').
// Useful for heartbeats; comments are ignored by SSE clients.
func (s *SSEWriter) WriteComment(comment string) error {
	if _, err := s.w.Write(sseCommentPrefix); err != nil {
		return err
	}

	if _, err := commentReplacer.WriteString(s.w, comment); err != nil {
		return err
	}

	if _, err := s.w.Write(sseTerminator); err != nil {
		return err
	}

	s.flusher.Flush()
	return nil
}
