package translator

import (
	"github.com/cc-launcher/cc-launcher/internal/protocol"
)

// PlaceholderText is the canned body returned in placeholder mode.
const PlaceholderText = "This is a placeholder response from cc-launcher."

// Placeholder-mode usage figures, fixed so dashboards show activity.
const (
	PlaceholderInputTokens  = 100
	PlaceholderOutputTokens = 20
)

// PlaceholderResponse fabricates an Anthropic response without contacting
// the upstream. Used when USE_PLACEHOLDER_MODE is set.
func PlaceholderResponse(model string) *protocol.MessagesResponse {
	stopReason := StopReasonEndTurn
	return &protocol.MessagesResponse{
		ID:    protocol.NewMessageID(),
		Type:  "message",
		Role:  "assistant",
		Model: model,
		Content: []protocol.ResponseBlock{
			{Type: "text", Text: PlaceholderText},
		},
		StopReason: &stopReason,
		Usage: protocol.Usage{
			InputTokens:  PlaceholderInputTokens,
			OutputTokens: PlaceholderOutputTokens,
		},
	}
}
