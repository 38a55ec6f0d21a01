package translator

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"
	"github.com/sirupsen/logrus"

	"github.com/cc-launcher/cc-launcher/internal/protocol"
)

// OpenAI finish reasons without a constant in the openai package.
const (
	finishReasonToolCalls    = "tool_calls"
	finishReasonFunctionCall = "function_call"
)

// Anthropic stop reasons, via the SDK constants.
const (
	StopReasonEndTurn   = string(anthropic.BetaStopReasonEndTurn)
	StopReasonMaxTokens = string(anthropic.BetaStopReasonMaxTokens)
	StopReasonToolUse   = string(anthropic.BetaStopReasonToolUse)
)

// TranslateResponse converts an OpenAI chat completion into an Anthropic
// message. The model echoed back is the client's original model name, not
// the upstream one.
func TranslateResponse(completion *protocol.ChatCompletion, originalModel string) *protocol.MessagesResponse {
	out := &protocol.MessagesResponse{
		ID:      protocol.NewMessageID(),
		Type:    "message",
		Role:    "assistant",
		Model:   originalModel,
		Content: []protocol.ResponseBlock{},
		Usage: protocol.Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}

	if len(completion.Choices) == 0 {
		logrus.Warn("upstream completion has no choices")
		return out
	}

	choice := completion.Choices[0]

	if choice.Message.Content != "" {
		out.Content = append(out.Content, protocol.ResponseBlock{
			Type: "text",
			Text: choice.Message.Content,
		})
	}

	for _, tc := range choice.Message.ToolCalls {
		if tc.Type != "function" {
			continue
		}
		var input map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil || input == nil {
			if tc.Function.Arguments != "" && err != nil {
				logrus.Warnf("tool call %s has malformed arguments, keeping raw", tc.ID)
				input = map[string]any{"raw": tc.Function.Arguments}
			} else {
				input = map[string]any{}
			}
		}
		id := tc.ID
		if id == "" {
			id = protocol.NewToolUseID()
		}
		out.Content = append(out.Content, protocol.ResponseBlock{
			Type:  "tool_use",
			ID:    id,
			Name:  tc.Function.Name,
			Input: input,
		})
	}

	if choice.FinishReason != "" {
		reason := MapFinishReason(choice.FinishReason)
		out.StopReason = &reason
	}

	return out
}

// MapFinishReason converts an OpenAI finish_reason into an Anthropic
// stop_reason. Unknown reasons default to end_turn. The streaming and
// non-streaming paths share this single mapping.
func MapFinishReason(finishReason string) string {
	switch finishReason {
	case string(openai.CompletionChoiceFinishReasonStop):
		return StopReasonEndTurn
	case string(openai.CompletionChoiceFinishReasonLength):
		return StopReasonMaxTokens
	case finishReasonToolCalls, finishReasonFunctionCall:
		return StopReasonToolUse
	case string(openai.CompletionChoiceFinishReasonContentFilter):
		// No Anthropic equivalent; the closest safe value.
		return StopReasonEndTurn
	default:
		return StopReasonEndTurn
	}
}
