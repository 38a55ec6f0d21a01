package translator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cc-launcher/cc-launcher/internal/protocol"
)

func identityMapper(model string) string { return model }

func mustRequest(t *testing.T, raw string) *protocol.MessagesRequest {
	t.Helper()
	var req protocol.MessagesRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	return &req
}

func TestTranslateRequestBasic(t *testing.T) {
	req := mustRequest(t, `{
		"model": "claude-sonnet-4",
		"max_tokens": 256,
		"system": "You are terse.",
		"messages": [{"role": "user", "content": "hello"}]
	}`)

	out, err := TranslateRequest(req, func(string) string { return "gpt-4o" }, 1024)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", out.Model)
	assert.Equal(t, 256, out.MaxTokens)
	assert.False(t, out.Stream)
	assert.Nil(t, out.StreamOptions)

	require.Len(t, out.Messages, 2)
	assert.Equal(t, "system", out.Messages[0].Role)
	assert.Equal(t, "You are terse.", out.Messages[0].Content)
	assert.Equal(t, "user", out.Messages[1].Role)
	assert.Equal(t, "hello", out.Messages[1].Content)
}

func TestTranslateRequestNil(t *testing.T) {
	_, err := TranslateRequest(nil, identityMapper, 1024)
	assert.Error(t, err)
}

func TestTranslateRequestMaxTokensDefault(t *testing.T) {
	req := mustRequest(t, `{"model": "m", "messages": [{"role": "user", "content": "hi"}]}`)

	out, err := TranslateRequest(req, identityMapper, 4096)
	require.NoError(t, err)
	assert.Equal(t, 4096, out.MaxTokens)
}

func TestTranslateRequestStreamOptions(t *testing.T) {
	req := mustRequest(t, `{"model": "m", "stream": true, "messages": [{"role": "user", "content": "hi"}]}`)

	out, err := TranslateRequest(req, identityMapper, 1024)
	require.NoError(t, err)
	assert.True(t, out.Stream)
	require.NotNil(t, out.StreamOptions)
	assert.True(t, out.StreamOptions.IncludeUsage)
}

func TestTranslateRequestSystemBlocks(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m",
		"system": [
			{"type": "text", "text": "Be brief."},
			{"type": "text", "text": "Answer in French."}
		],
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	out, err := TranslateRequest(req, identityMapper, 1024)
	require.NoError(t, err)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, "Be brief. Answer in French.", out.Messages[0].Content)
}

func TestTranslateRequestToolResultsBeforeUserText(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m",
		"messages": [{
			"role": "user",
			"content": [
				{"type": "text", "text": "here you go"},
				{"type": "tool_result", "tool_use_id": "toolu_1", "content": "42"},
				{"type": "tool_result", "tool_use_id": "toolu_2", "content": "fail", "is_error": true}
			]
		}]
	}`)

	out, err := TranslateRequest(req, identityMapper, 1024)
	require.NoError(t, err)
	require.Len(t, out.Messages, 3)

	// Tool answers come first so they adjoin the assistant turn that called
	// them, then the user text.
	assert.Equal(t, "tool", out.Messages[0].Role)
	assert.Equal(t, "toolu_1", out.Messages[0].ToolCallID)
	assert.Equal(t, "42", out.Messages[0].Content)

	assert.Equal(t, "tool", out.Messages[1].Role)
	assert.Equal(t, "toolu_2", out.Messages[1].ToolCallID)
	assert.Equal(t, "Error: fail", out.Messages[1].Content)

	assert.Equal(t, "user", out.Messages[2].Role)
	assert.Equal(t, "here you go", out.Messages[2].Content)
}

func TestTranslateRequestToolResultOnly(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m",
		"messages": [{
			"role": "user",
			"content": [{"type": "tool_result", "tool_use_id": "toolu_1", "content": "ok"}]
		}]
	}`)

	out, err := TranslateRequest(req, identityMapper, 1024)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "tool", out.Messages[0].Role)
}

func TestTranslateRequestImageBlock(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m",
		"messages": [{
			"role": "user",
			"content": [
				{"type": "text", "text": "what is this"},
				{"type": "image", "source": {"type": "base64", "media_type": "image/jpeg", "data": "AAAA"}}
			]
		}]
	}`)

	out, err := TranslateRequest(req, identityMapper, 1024)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)

	parts, ok := out.Messages[0].Content.([]protocol.ContentPart)
	require.True(t, ok)
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, "image_url", parts[1].Type)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", parts[1].ImageURL.URL)
}

func TestTranslateRequestAssistantToolUse(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m",
		"messages": [{
			"role": "assistant",
			"content": [
				{"type": "text", "text": "let me check"},
				{"type": "tool_use", "id": "toolu_abc", "name": "get_weather", "input": {"city": "Paris"}}
			]
		}]
	}`)

	out, err := TranslateRequest(req, identityMapper, 1024)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)

	msg := out.Messages[0]
	assert.Equal(t, "assistant", msg.Role)
	assert.Equal(t, "let me check", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "toolu_abc", msg.ToolCalls[0].ID)
	assert.Equal(t, "function", msg.ToolCalls[0].Type)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"city": "Paris"}`, msg.ToolCalls[0].Function.Arguments)
}

func TestTranslateRequestAssistantToolUseOnly(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m",
		"messages": [{
			"role": "assistant",
			"content": [{"type": "tool_use", "name": "lookup"}]
		}]
	}`)

	out, err := TranslateRequest(req, identityMapper, 1024)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)

	msg := out.Messages[0]
	assert.Nil(t, msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call_0", msg.ToolCalls[0].ID)
	assert.Equal(t, "{}", msg.ToolCalls[0].Function.Arguments)
}

func TestTranslateRequestUnknownRoleDropped(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m",
		"messages": [
			{"role": "narrator", "content": "meanwhile"},
			{"role": "user", "content": "hi"}
		]
	}`)

	out, err := TranslateRequest(req, identityMapper, 1024)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "user", out.Messages[0].Role)
}

func TestTranslateRequestTools(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m",
		"messages": [{"role": "user", "content": "hi"}],
		"tools": [
			{"name": "get_weather", "description": "weather lookup",
			 "input_schema": {"type": "object", "properties": {"city": {"type": "string"}}}},
			{"name": "noop"}
		]
	}`)

	out, err := TranslateRequest(req, identityMapper, 1024)
	require.NoError(t, err)
	require.Len(t, out.Tools, 2)

	assert.Equal(t, "function", out.Tools[0].Type)
	assert.Equal(t, "get_weather", out.Tools[0].Function.Name)
	assert.Equal(t, "weather lookup", out.Tools[0].Function.Description)

	// A tool without a schema gets an empty object schema.
	assert.JSONEq(t, `{"type": "object", "properties": {}}`, string(out.Tools[1].Function.Parameters))
}

func TestTranslateToolChoice(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{"string auto", `"auto"`, "auto"},
		{"string any", `"any"`, "required"},
		{"string none", `"none"`, "none"},
		{"string unknown", `"whatever"`, "auto"},
		{"object auto", `{"type": "auto"}`, "auto"},
		{"object any", `{"type": "any"}`, "required"},
		{"object tool", `{"type": "tool", "name": "get_weather"}`,
			map[string]any{"type": "function", "function": map[string]any{"name": "get_weather"}}},
		{"object unknown", `{"type": "mystery"}`, "auto"},
		{"garbage", `12`, "auto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, translateToolChoice(json.RawMessage(tt.raw)))
		})
	}
}
