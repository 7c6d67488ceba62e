package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sync"

	"taskhub-notify/internal/domain"
)

// sseWriter frames events as server-sent events. The mutex serializes the
// stream loop and the liveness probe on the same connection.
type sseWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func newSSEWriter(w *bufio.Writer) *sseWriter {
	return &sseWriter{w: w}
}

func (s *sseWriter) Emit(ev domain.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	return s.w.Flush()
}

// ping writes an SSE comment; clients ignore it, but the flush fails once
// the peer is gone.
func (s *sseWriter) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.WriteString(": ping\n\n"); err != nil {
		return err
	}
	return s.w.Flush()
}
