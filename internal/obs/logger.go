// Package obs holds the in-memory observability surfaces: the API-call ring
// buffer backing the dashboard and the OTel token tracker. Nothing here
// touches disk; the proxy keeps no state across restarts.
package obs

import (
	"sync"
	"time"
)

// maxEntries bounds both ring buffers.
const maxEntries = 100

// APICall is one proxied request as shown on the dashboard. Request and
// response bodies are deliberately not recorded.
type APICall struct {
	Timestamp    time.Time `json:"timestamp"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	Status       int       `json:"status"`
	DurationMs   int64     `json:"duration_ms"`
	Model        string    `json:"model,omitempty"`
	Streaming    bool      `json:"streaming,omitempty"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	ErrorType    string    `json:"error_type,omitempty"`
}

// ServerEvent is a non-request lifecycle event (startup, OAuth warm-up…).
type ServerEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// MemoryLogger keeps the last hundred API calls and server events plus
// aggregate usage counters. Writes are append-only from the request path.
type MemoryLogger struct {
	mu sync.RWMutex

	calls  []APICall
	events []ServerEvent

	totalRequests     int
	successCount      int
	errorCount        int
	totalInputTokens  int
	totalOutputTokens int
	totalLatencyMs    int64
	sessionStart      time.Time
}

// NewMemoryLogger creates an empty logger; the session clock starts now.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{sessionStart: time.Now()}
}

// LogAPICall records one proxied request. A zero Timestamp is filled in.
func (ml *MemoryLogger) LogAPICall(call APICall) {
	if call.Timestamp.IsZero() {
		call.Timestamp = time.Now()
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.calls = append(ml.calls, call)
	if len(ml.calls) > maxEntries {
		ml.calls = ml.calls[len(ml.calls)-maxEntries:]
	}

	ml.totalRequests++
	if call.Status >= 200 && call.Status < 400 {
		ml.successCount++
	} else {
		ml.errorCount++
	}
	ml.totalInputTokens += call.InputTokens
	ml.totalOutputTokens += call.OutputTokens
	ml.totalLatencyMs += call.DurationMs
}

// LogServerEvent records a lifecycle event.
func (ml *MemoryLogger) LogServerEvent(level, message string, data map[string]any) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.events = append(ml.events, ServerEvent{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Data:      data,
	})
	if len(ml.events) > maxEntries {
		ml.events = ml.events[len(ml.events)-maxEntries:]
	}
}

// APICalls returns up to limit most recent calls, newest last.
func (ml *MemoryLogger) APICalls(limit int) []APICall {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	if limit <= 0 || limit > len(ml.calls) {
		limit = len(ml.calls)
	}
	out := make([]APICall, limit)
	copy(out, ml.calls[len(ml.calls)-limit:])
	return out
}

// ServerEvents returns up to limit most recent events, newest last.
func (ml *MemoryLogger) ServerEvents(limit int) []ServerEvent {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	if limit <= 0 || limit > len(ml.events) {
		limit = len(ml.events)
	}
	out := make([]ServerEvent, limit)
	copy(out, ml.events[len(ml.events)-limit:])
	return out
}

// RequestCount returns the number of requests seen this session.
func (ml *MemoryLogger) RequestCount() int {
	ml.mu.RLock()
	defer ml.mu.RUnlock()
	return ml.totalRequests
}

// UsageSnapshot returns the aggregate stats shown by /api/usage.
func (ml *MemoryLogger) UsageSnapshot() map[string]any {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	successRate := 0.0
	avgLatency := 0.0
	if ml.totalRequests > 0 {
		successRate = float64(ml.successCount) / float64(ml.totalRequests)
		avgLatency = float64(ml.totalLatencyMs) / float64(ml.totalRequests)
	}

	return map[string]any{
		"total_requests":           ml.totalRequests,
		"success_count":            ml.successCount,
		"error_count":              ml.errorCount,
		"success_rate":             successRate,
		"avg_latency_ms":           avgLatency,
		"total_input_tokens":       ml.totalInputTokens,
		"total_output_tokens":      ml.totalOutputTokens,
		"session_start":            ml.sessionStart,
		"session_duration_seconds": time.Since(ml.sessionStart).Seconds(),
	}
}

// ClearLogs drops both ring buffers; usage counters stay.
func (ml *MemoryLogger) ClearLogs() {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.calls = nil
	ml.events = nil
}

// ResetUsage zeroes the aggregate counters and restarts the session clock.
func (ml *MemoryLogger) ResetUsage() {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.totalRequests = 0
	ml.successCount = 0
	ml.errorCount = 0
	ml.totalInputTokens = 0
	ml.totalOutputTokens = 0
	ml.totalLatencyMs = 0
	ml.sessionStart = time.Now()
}
