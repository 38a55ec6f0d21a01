package stream

import (
	"strings"

	"github.com/cc-launcher/cc-launcher/internal/protocol"
	"github.com/cc-launcher/cc-launcher/internal/translator"
)

// placeholderStreamText mirrors the non-streaming placeholder body.
const placeholderStreamText = "This is a placeholder streaming response from cc-launcher."

// PlaceholderEvents fabricates a complete word-by-word Anthropic stream for
// placeholder mode. The caller paces the writes.
func PlaceholderEvents(model string) []Event {
	if model == "" {
		model = protocol.DefaultModel
	}

	t := New(model)
	t.inputTokens = translator.PlaceholderInputTokens

	events := []Event{t.messageStart(), t.contentBlockStartText()}

	words := strings.Fields(placeholderStreamText)
	for i, word := range words {
		text := word
		if i < len(words)-1 {
			text += " "
		}
		events = append(events, t.textDelta(text))
	}

	t.outputTokens = len(words)
	t.stopReason = translator.StopReasonEndTurn
	events = append(events, t.contentBlockStop())
	return append(events, t.streamEnd()...)
}
