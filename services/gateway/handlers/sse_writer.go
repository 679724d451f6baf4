// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter defines the contract for writing Server-Sent Events to HTTP responses.
//
// # Description
//
// SSEWriter abstracts the chat stream's wire format, enabling testability
// and separation from HTTP response mechanics. The format matches what the
// web client's EventSource handler parses:
//
//	data: {"content": "text fragment"}   (one per content event)
//	data: [DONE]                         (successful completion)
//	data: {"error": "message"}           (terminal failure)
//
// Every data line is followed by a blank line and flushed immediately so
// tokens render as they arrive.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use by multiple goroutines.
// The keepalive goroutine writes concurrently with the token stream.
//
// # Limitations
//
//   - Must be used with http.Flusher-compatible ResponseWriter
//   - Response headers must be set before first write
//
// # Assumptions
//
//   - Caller has set Content-Type: text/event-stream before writing
//   - Caller has disabled buffering (X-Accel-Buffering: no)
type SSEWriter interface {
	// WriteContent writes one content event carrying a text fragment.
	//
	// # Description
	//
	// Serializes the fragment as {"content": text} and writes it as an SSE
	// data line. Flushes immediately after writing. Empty fragments are
	// written as-is; suppressing them is the producer's call, not the
	// writer's.
	//
	// # Inputs
	//
	//   - content: Text fragment to stream (may be partial word or whitespace)
	//
	// # Outputs
	//
	//   - error: Non-nil if marshaling or writing failed.
	//
	// # Assumptions
	//
	//   - Fragments are in display order
	WriteContent(content string) error

	// WriteError writes the terminal error event.
	//
	// # Description
	//
	// Serializes the message as {"error": message} and writes it as an SSE
	// data line. Should be followed by closing the stream; a well-formed
	// stream carries at most one terminal event.
	//
	// # Inputs
	//
	//   - errMsg: Error message for the client (no internal details)
	//
	// # Outputs
	//
	//   - error: Non-nil if writing failed.
	//
	// # Assumptions
	//
	//   - Stream will be closed after the error event
	WriteError(errMsg string) error

	// WriteDone writes the completion sentinel and ends the stream.
	//
	// # Description
	//
	// Writes the literal "data: [DONE]" line that tells the client the
	// answer is complete. The sentinel is not JSON; clients match it
	// before attempting to parse.
	//
	// # Outputs
	//
	//   - error: Non-nil if writing failed.
	//
	// # Limitations
	//
	//   - Should only be called once per stream
	//
	// # Assumptions
	//
	//   - No more events will be written after done
	WriteDone() error

	// WriteKeepAlive sends a comment line to prevent connection timeouts.
	//
	// # Description
	//
	// Sends an SSE comment (": ping\n\n") to keep the connection alive while
	// the model is thinking or a fallback chain is being walked. SSE comments
	// are ignored by clients but keep the TCP connection active, preventing
	// timeout disconnections from load balancers (AWS ALB, Nginx default 60s).
	//
	// # Outputs
	//
	//   - error: Non-nil if writing failed.
	//
	// # Examples
	//
	//	// In a goroutine during long operations:
	//	ticker := time.NewTicker(15 * time.Second)
	//	defer ticker.Stop()
	//	for {
	//	    select {
	//	    case <-ticker.C:
	//	        writer.WriteKeepAlive()
	//	    case <-done:
	//	        return
	//	    }
	//	}
	//
	// # Assumptions
	//
	//   - Connection is still open
	WriteKeepAlive() error
}

// =============================================================================
// Struct Definition
// =============================================================================

// contentPayload is the JSON body of one content event.
type contentPayload struct {
	Content string `json:"content"`
}

// errorPayload is the JSON body of the terminal error event.
type errorPayload struct {
	Error string `json:"error"`
}

// doneSentinel is the non-JSON payload that closes a successful stream.
const doneSentinel = "[DONE]"

// sseWriter implements SSEWriter for HTTP SSE responses.
//
// # Description
//
// sseWriter wraps an http.ResponseWriter to emit the chat stream's wire
// format. Each event is written as:
//
//	data: {payload}
//
// followed by a blank line, then flushed so proxies and the client see it
// immediately.
//
// # Fields
//
//   - writer: Underlying http.ResponseWriter
//   - flusher: http.Flusher interface for immediate send
//   - mu: Mutex for thread-safe writes
//
// # Thread Safety
//
// Thread-safe via mutex. The keepalive goroutine and the token stream can
// write concurrently without interleaving partial frames.
//
// # Limitations
//
//   - Cannot be reused across requests
//
// # Assumptions
//
//   - Response headers already set by caller
//   - ResponseWriter supports http.Flusher interface
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// =============================================================================
// Constructor
// =============================================================================

// NewSSEWriter creates a new SSEWriter for the given ResponseWriter.
//
// # Description
//
// Creates an sseWriter that wraps the ResponseWriter. The caller must
// set appropriate SSE headers before creating the writer.
//
// # Inputs
//
//   - w: HTTP ResponseWriter. Must implement http.Flusher.
//
// # Outputs
//
//   - SSEWriter: Ready to write SSE events.
//   - error: Non-nil if ResponseWriter doesn't support flushing.
//
// # Examples
//
//	SetSSEHeaders(w)
//	writer, err := NewSSEWriter(w)
//	if err != nil {
//	    http.Error(w, "Streaming not supported", http.StatusInternalServerError)
//	    return
//	}
//	writer.WriteContent("Hello")
//	writer.WriteDone()
//
// # Limitations
//
//   - Requires http.Flusher support (most ResponseWriters have it)
//
// # Assumptions
//
//   - Caller has set SSE headers via SetSSEHeaders()
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}

	return &sseWriter{
		writer:  w,
		flusher: flusher,
	}, nil
}

// =============================================================================
// Methods
// =============================================================================

// WriteContent writes one content event carrying a text fragment.
func (w *sseWriter) WriteContent(content string) error {
	data, err := json.Marshal(contentPayload{Content: content})
	if err != nil {
		return fmt.Errorf("marshal content event: %w", err)
	}
	return w.writeData(data)
}

// WriteError writes the terminal error event.
func (w *sseWriter) WriteError(errMsg string) error {
	data, err := json.Marshal(errorPayload{Error: errMsg})
	if err != nil {
		return fmt.Errorf("marshal error event: %w", err)
	}
	return w.writeData(data)
}

// WriteDone writes the completion sentinel.
func (w *sseWriter) WriteDone() error {
	return w.writeData([]byte(doneSentinel))
}

// writeData writes one SSE data frame and flushes it.
//
// # Description
//
// Writes "data: {payload}\n\n" under the mutex so concurrent writers
// cannot interleave partial frames, then flushes so the client receives
// the event immediately.
//
// # Inputs
//
//   - payload: Pre-serialized event body (JSON object or the done sentinel).
//
// # Outputs
//
//   - error: Non-nil if writing failed, which usually means the client
//     disconnected.
func (w *sseWriter) writeData(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	w.flusher.Flush()
	return nil
}

// WriteKeepAlive sends a comment line to keep the connection alive.
//
// # Description
//
// Writes an SSE comment (": ping\n\n") to keep the TCP connection active
// during long operations. Comments are ignored by SSE clients but reset
// load balancer timeout counters.
//
// # Outputs
//
//   - error: Non-nil if writing failed.
//
// # Assumptions
//
//   - Connection is still open.
func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// SSE comment format: colon followed by text, then double newline
	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}

	w.flusher.Flush()
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// SetSSEHeaders configures HTTP response headers for SSE streaming.
//
// # Description
//
// Sets the required headers for Server-Sent Events:
//   - Content-Type: text/event-stream
//   - Cache-Control: no-cache
//   - Connection: keep-alive
//   - X-Accel-Buffering: no (disables nginx buffering)
//
// Must be called before writing any response body.
//
// # Inputs
//
//   - w: HTTP ResponseWriter to configure.
//
// # Outputs
//
// None.
//
// # Limitations
//
//   - Must be called before any writes to ResponseWriter.
//
// # Assumptions
//
//   - No response has been written yet.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ SSEWriter = (*sseWriter)(nil)
