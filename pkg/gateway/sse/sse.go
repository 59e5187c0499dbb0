package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/stampchat/stampchat/pkg/core/types"
)

// Relay serializes stream events as newline-delimited `data: {json}` frames
// and writes them immediately, no batching. A failed write latches the relay
// closed: the client is gone, the turn is abandoned silently, and every
// later Emit becomes a no-op instead of a process error.
type Relay struct {
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// New prepares a relay on w. Fails when the transport cannot flush.
func New(w http.ResponseWriter, logger *slog.Logger) (*Relay, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{w: w, flusher: f, logger: logger}, nil
}

// PrepareHeaders sets the SSE response headers. Call before the first Emit.
func PrepareHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// Emit frames one event and flushes it. Returns false once the relay is
// closed; callers may stop producing events for the turn.
func (r *Relay) Emit(event types.StreamEvent) bool {
	b, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("sse marshal failed", "event", event.EventType(), "error", err)
		return !r.Closed()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if _, err := fmt.Fprintf(r.w, "data: %s\n\n", b); err != nil {
		r.closed = true
		r.logger.Info("client disconnected mid-stream", "error", err)
		return false
	}
	r.flusher.Flush()
	return true
}

// Closed reports whether a write has failed.
func (r *Relay) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// ChunkWords splits text into fixed-size word groups for cosmetic
// re-streaming of already-complete text.
func ChunkWords(text string, wordsPerChunk int) []string {
	if wordsPerChunk <= 0 {
		wordsPerChunk = 5
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var chunks []string
	for start := 0; start < len(words); start += wordsPerChunk {
		end := start + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[start:end], " ")
		if end < len(words) {
			chunk += " "
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// StreamChunks emits the final text as word-group content frames with a
// small inter-chunk delay. This is independent of provider token streaming;
// the full text was already sent in a complete_response frame. Stops early
// when the relay closes.
func (r *Relay) StreamChunks(text string, wordsPerChunk int, delay time.Duration) {
	for _, chunk := range ChunkWords(text, wordsPerChunk) {
		if !r.Emit(types.ContentEvent{Type: "content", Content: chunk}) {
			return
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}
}
