package translator

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cc-launcher/cc-launcher/internal/protocol"
)

func mustCompletion(t *testing.T, raw string) *protocol.ChatCompletion {
	t.Helper()
	var completion protocol.ChatCompletion
	require.NoError(t, json.Unmarshal([]byte(raw), &completion))
	return &completion
}

func TestTranslateResponseText(t *testing.T) {
	completion := mustCompletion(t, `{
		"id": "chatcmpl-1",
		"model": "gpt-4o",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello!"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 3}
	}`)

	out := TranslateResponse(completion, "claude-sonnet-4")

	assert.True(t, strings.HasPrefix(out.ID, "msg_"))
	assert.Equal(t, "message", out.Type)
	assert.Equal(t, "assistant", out.Role)
	// The client sees its own model name, not the upstream one.
	assert.Equal(t, "claude-sonnet-4", out.Model)

	require.Len(t, out.Content, 1)
	assert.Equal(t, "text", out.Content[0].Type)
	assert.Equal(t, "Hello!", out.Content[0].Text)

	require.NotNil(t, out.StopReason)
	assert.Equal(t, "end_turn", *out.StopReason)
	assert.Equal(t, 12, out.Usage.InputTokens)
	assert.Equal(t, 3, out.Usage.OutputTokens)
}

func TestTranslateResponseToolCalls(t *testing.T) {
	completion := mustCompletion(t, `{
		"choices": [{
			"message": {
				"role": "assistant",
				"content": "Checking.",
				"tool_calls": [
					{"id": "call_1", "type": "function",
					 "function": {"name": "get_weather", "arguments": "{\"city\":\"Paris\"}"}},
					{"type": "function", "function": {"name": "noargs", "arguments": ""}}
				]
			},
			"finish_reason": "tool_calls"
		}]
	}`)

	out := TranslateResponse(completion, "m")
	require.Len(t, out.Content, 3)

	assert.Equal(t, "text", out.Content[0].Type)

	tool := out.Content[1]
	assert.Equal(t, "tool_use", tool.Type)
	assert.Equal(t, "call_1", tool.ID)
	assert.Equal(t, "get_weather", tool.Name)
	assert.Equal(t, map[string]any{"city": "Paris"}, tool.Input)

	// Missing id gets a generated one, empty arguments become an empty object.
	second := out.Content[2]
	assert.True(t, strings.HasPrefix(second.ID, "toolu_"))
	assert.Equal(t, map[string]any{}, second.Input)

	require.NotNil(t, out.StopReason)
	assert.Equal(t, "tool_use", *out.StopReason)
}

func TestTranslateResponseMalformedArguments(t *testing.T) {
	completion := mustCompletion(t, `{
		"choices": [{
			"message": {
				"role": "assistant",
				"tool_calls": [{"id": "call_1", "type": "function",
					"function": {"name": "f", "arguments": "{not json"}}]
			},
			"finish_reason": "tool_calls"
		}]
	}`)

	out := TranslateResponse(completion, "m")
	require.Len(t, out.Content, 1)
	assert.Equal(t, map[string]any{"raw": "{not json"}, out.Content[0].Input)
}

func TestTranslateResponseNoChoices(t *testing.T) {
	out := TranslateResponse(mustCompletion(t, `{"choices": []}`), "m")
	assert.Empty(t, out.Content)
	assert.Nil(t, out.StopReason)
}

func TestTranslateResponseNullContent(t *testing.T) {
	completion := mustCompletion(t, `{
		"choices": [{"message": {"role": "assistant", "content": null}, "finish_reason": "stop"}]
	}`)

	out := TranslateResponse(completion, "m")
	assert.Empty(t, out.Content)
}

func TestMapFinishReason(t *testing.T) {
	tests := []struct {
		finish string
		want   string
	}{
		{"stop", "end_turn"},
		{"length", "max_tokens"},
		{"tool_calls", "tool_use"},
		{"function_call", "tool_use"},
		{"content_filter", "end_turn"},
		{"something_new", "end_turn"},
	}

	for _, tt := range tests {
		t.Run(tt.finish, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFinishReason(tt.finish))
		})
	}
}
