package obs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAPICallAggregates(t *testing.T) {
	ml := NewMemoryLogger()

	ml.LogAPICall(APICall{Status: 200, DurationMs: 100, InputTokens: 10, OutputTokens: 5})
	ml.LogAPICall(APICall{Status: 529, DurationMs: 300, ErrorType: "overloaded_error"})

	assert.Equal(t, 2, ml.RequestCount())

	snapshot := ml.UsageSnapshot()
	assert.Equal(t, 2, snapshot["total_requests"])
	assert.Equal(t, 1, snapshot["success_count"])
	assert.Equal(t, 1, snapshot["error_count"])
	assert.Equal(t, 0.5, snapshot["success_rate"])
	assert.Equal(t, 200.0, snapshot["avg_latency_ms"])
	assert.Equal(t, 10, snapshot["total_input_tokens"])
	assert.Equal(t, 5, snapshot["total_output_tokens"])
}

func TestRingBufferCap(t *testing.T) {
	ml := NewMemoryLogger()

	for i := 0; i < maxEntries+25; i++ {
		ml.LogAPICall(APICall{Status: 200, Path: fmt.Sprintf("/call/%d", i)})
	}

	calls := ml.APICalls(0)
	require.Len(t, calls, maxEntries)
	// Oldest entries were evicted.
	assert.Equal(t, "/call/25", calls[0].Path)
	assert.Equal(t, fmt.Sprintf("/call/%d", maxEntries+24), calls[len(calls)-1].Path)

	// Counters keep the full total even after eviction.
	assert.Equal(t, maxEntries+25, ml.RequestCount())
}

func TestAPICallsLimit(t *testing.T) {
	ml := NewMemoryLogger()
	for i := 0; i < 10; i++ {
		ml.LogAPICall(APICall{Status: 200, Path: fmt.Sprintf("/call/%d", i)})
	}

	calls := ml.APICalls(3)
	require.Len(t, calls, 3)
	assert.Equal(t, "/call/7", calls[0].Path)
	assert.Equal(t, "/call/9", calls[2].Path)
}

func TestServerEvents(t *testing.T) {
	ml := NewMemoryLogger()
	ml.LogServerEvent("info", "started", map[string]any{"port": 5000})

	events := ml.ServerEvents(0)
	require.Len(t, events, 1)
	assert.Equal(t, "info", events[0].Level)
	assert.Equal(t, "started", events[0].Message)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestClearLogsKeepsUsage(t *testing.T) {
	ml := NewMemoryLogger()
	ml.LogAPICall(APICall{Status: 200, InputTokens: 3})
	ml.LogServerEvent("info", "x", nil)

	ml.ClearLogs()

	assert.Empty(t, ml.APICalls(0))
	assert.Empty(t, ml.ServerEvents(0))
	assert.Equal(t, 1, ml.RequestCount())
}

func TestResetUsage(t *testing.T) {
	ml := NewMemoryLogger()
	ml.LogAPICall(APICall{Status: 200, InputTokens: 3})

	ml.ResetUsage()

	snapshot := ml.UsageSnapshot()
	assert.Equal(t, 0, snapshot["total_requests"])
	assert.Equal(t, 0, snapshot["total_input_tokens"])
	assert.Equal(t, 0, ml.RequestCount())
}
