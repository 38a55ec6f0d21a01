package protocol

import (
	"strings"

	"github.com/google/uuid"
)

// shortHex returns 24 hex characters, the suffix length Anthropic uses for
// its public identifiers.
func shortHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// NewMessageID returns a fresh Anthropic-style message identifier.
func NewMessageID() string {
	return "msg_" + shortHex()
}

// NewToolUseID returns a fresh Anthropic-style tool_use identifier.
func NewToolUseID() string {
	return "toolu_" + shortHex()
}
