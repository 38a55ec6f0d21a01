// Package translator converts between the Anthropic messages dialect spoken
// by clients and the OpenAI chat-completions dialect spoken by the upstream.
// Translation is pure: no I/O, no blocking. Recoverable input quirks are
// logged and degraded, never raised.
package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cc-launcher/cc-launcher/internal/protocol"
)

// ModelMapper resolves a client-facing model name to the upstream name.
type ModelMapper func(model string) string

// TranslateRequest converts an Anthropic messages request into an OpenAI
// chat-completions request. max_tokens is always populated: the client value
// when present, defaultMaxTokens otherwise.
func TranslateRequest(req *protocol.MessagesRequest, mapModel ModelMapper, defaultMaxTokens int) (*protocol.ChatRequest, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}

	model := req.Model
	if model == "" {
		model = protocol.DefaultModel
	}

	out := &protocol.ChatRequest{
		Model:       mapModel(model),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
	}

	if system := systemText(req.System); system != "" {
		out.Messages = append(out.Messages, protocol.ChatMessage{Role: "system", Content: system})
	}

	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, translateMessage(msg)...)
	}

	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	} else {
		out.MaxTokens = defaultMaxTokens
		logrus.Debugf("injected max_tokens=%d (absent from request)", defaultMaxTokens)
	}

	if req.Stream {
		out.Stream = true
		// Ask for the usage-bearing final chunk so streamed responses can
		// report token counts.
		out.StreamOptions = &protocol.StreamOptions{IncludeUsage: true}
	}

	if len(req.Tools) > 0 {
		out.Tools = translateTools(req.Tools)
	}
	if len(req.ToolChoice) > 0 {
		out.ToolChoice = translateToolChoice(req.ToolChoice)
	}

	return out, nil
}

// systemText flattens the system prompt union into a single string. Text
// blocks are joined with single spaces.
func systemText(system *protocol.SystemPrompt) string {
	if system == nil {
		return ""
	}
	if system.IsString {
		return system.Text
	}
	var parts []string
	for _, block := range system.Blocks {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, " ")
}

// translateMessage fans one Anthropic message out into zero or more OpenAI
// messages. User messages that embed tool_result blocks produce the tool
// messages first: they answer the previous assistant turn's tool calls.
func translateMessage(msg protocol.Message) []protocol.ChatMessage {
	switch msg.Role {
	case "user":
		return translateUserMessage(msg)
	case "assistant":
		return []protocol.ChatMessage{translateAssistantMessage(msg)}
	case "tool_result":
		// Non-standard top-level role some clients send; kept for
		// compatibility.
		return []protocol.ChatMessage{{
			Role:       "tool",
			ToolCallID: msg.ToolUseID,
			Content:    flattenContent(&msg.Content),
		}}
	default:
		logrus.Warnf("dropping message with unknown role %q", msg.Role)
		return nil
	}
}

func translateUserMessage(msg protocol.Message) []protocol.ChatMessage {
	if msg.Content.IsString {
		return []protocol.ChatMessage{{Role: "user", Content: msg.Content.Text}}
	}

	var toolMessages []protocol.ChatMessage
	var parts []protocol.ContentPart

	for _, block := range msg.Content.Blocks {
		switch block.Type {
		case "tool_result":
			content := flattenContent(block.Content)
			if block.IsError {
				content = "Error: " + content
			}
			toolMessages = append(toolMessages, protocol.ChatMessage{
				Role:       "tool",
				ToolCallID: block.ToolUseID,
				Content:    content,
			})
		case "text":
			parts = append(parts, protocol.ContentPart{Type: "text", Text: block.Text})
		case "image":
			if block.Source == nil || block.Source.Type != "base64" {
				continue
			}
			mediaType := block.Source.MediaType
			if mediaType == "" {
				mediaType = "image/png"
			}
			parts = append(parts, protocol.ContentPart{
				Type:     "image_url",
				ImageURL: &protocol.ImageURL{URL: "data:" + mediaType + ";base64," + block.Source.Data},
			})
		default:
			logrus.Debugf("skipping unknown user content block type %q", block.Type)
		}
	}

	result := toolMessages
	switch {
	case len(parts) == 1 && parts[0].Type == "text":
		result = append(result, protocol.ChatMessage{Role: "user", Content: parts[0].Text})
	case len(parts) > 0:
		result = append(result, protocol.ChatMessage{Role: "user", Content: parts})
	case len(toolMessages) == 0:
		result = append(result, protocol.ChatMessage{Role: "user", Content: ""})
	}
	return result
}

func translateAssistantMessage(msg protocol.Message) protocol.ChatMessage {
	out := protocol.ChatMessage{Role: "assistant"}

	if msg.Content.IsString {
		out.Content = msg.Content.Text
		return out
	}

	var textParts []string
	for i, block := range msg.Content.Blocks {
		switch block.Type {
		case "text":
			textParts = append(textParts, block.Text)
		case "tool_use":
			id := block.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", i)
			}
			arguments := "{}"
			if len(block.Input) > 0 {
				arguments = string(block.Input)
			}
			out.ToolCalls = append(out.ToolCalls, protocol.ToolCall{
				ID:   id,
				Type: "function",
				Function: protocol.ToolCallFunction{
					Name:      block.Name,
					Arguments: arguments,
				},
			})
		}
	}

	if len(textParts) > 0 {
		out.Content = strings.Join(textParts, " ")
	}
	// Content stays nil when the turn carried only tool calls; it serializes
	// as JSON null, which the upstream expects alongside tool_calls.
	return out
}

// flattenContent stringifies a tool_result content union, joining nested
// text blocks with single spaces.
func flattenContent(content *protocol.MessageContent) string {
	if content == nil {
		return ""
	}
	if content.IsString {
		return content.Text
	}
	var parts []string
	for _, block := range content.Blocks {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, " ")
}

var defaultToolParameters = json.RawMessage(`{"type":"object","properties":{}}`)

func translateTools(tools []protocol.Tool) []protocol.ChatTool {
	out := make([]protocol.ChatTool, 0, len(tools))
	for _, tool := range tools {
		parameters := tool.InputSchema
		if len(parameters) == 0 {
			parameters = defaultToolParameters
		}
		out = append(out, protocol.ChatTool{
			Type: "function",
			Function: protocol.ChatFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  parameters,
			},
		})
	}
	return out
}

// translateToolChoice maps the Anthropic tool_choice union onto the OpenAI
// one. Unrecognized values degrade to "auto".
func translateToolChoice(raw json.RawMessage) any {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch s {
		case "auto":
			return "auto"
		case "any":
			return "required"
		case "none":
			return "none"
		}
		return "auto"
	}

	var obj struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		logrus.Warnf("unrecognized tool_choice %s, defaulting to auto", raw)
		return "auto"
	}
	switch obj.Type {
	case "auto":
		return "auto"
	case "any":
		return "required"
	case "none":
		return "none"
	case "tool":
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": obj.Name},
		}
	}
	return "auto"
}
