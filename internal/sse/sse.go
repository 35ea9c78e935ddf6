// Package sse writes Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Writer wraps an http.ResponseWriter and sends Server-Sent Events.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter sets SSE response headers and returns a Writer.
// Returns an error if the underlying ResponseWriter does not support flushing.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return &Writer{w: w, flusher: flusher}, nil
}

// Retry tells the browser how long to wait before reconnecting.
func (sw *Writer) Retry(d time.Duration) error {
	if _, err := fmt.Fprintf(sw.w, "retry: %d\n\n", d.Milliseconds()); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// SendEvent marshals data to JSON and writes it as an event of the given
// type. An empty name produces a default "message" event.
func (sw *Writer) SendEvent(name string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling SSE data: %w", err)
	}
	if name != "" {
		if _, err := fmt.Fprintf(sw.w, "event: %s\n", name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", b); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}
