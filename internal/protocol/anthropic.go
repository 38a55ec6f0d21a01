package protocol

import (
	"encoding/json"
)

// DefaultModel is assumed when a client omits the model field.
const DefaultModel = "claude-sonnet-4-20250514"

// MessagesRequest is the Anthropic /v1/messages request body.
//
// Fields the proxy does not recognize are dropped on decode; the translator
// never rejects a request for unknown fields.
type MessagesRequest struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages"`
	System        *SystemPrompt   `json:"system,omitempty"`
	MaxTokens     *int            `json:"max_tokens,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    json.RawMessage `json:"tool_choice,omitempty"`
}

// Message is a single conversation turn. Role is normally "user" or
// "assistant"; a top-level "tool_result" role is accepted for compatibility
// with clients that flatten tool results into the message list.
type Message struct {
	Role      string         `json:"role"`
	Content   MessageContent `json:"content"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
}

// MessageContent is the string-or-block-array union used by message and
// tool_result content.
type MessageContent struct {
	Text     string
	Blocks   []ContentBlock
	IsString bool
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		c.IsString = true
		return json.Unmarshal(data, &c.Text)
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		// Neither string nor block array. Degrade to the raw text rather
		// than failing the whole request.
		c.IsString = true
		c.Text = string(data)
		return nil
	}
	c.Blocks = blocks
	return nil
}

// SystemPrompt is the top-level system field: a string or a list of text
// blocks.
type SystemPrompt struct {
	Text     string
	Blocks   []ContentBlock
	IsString bool
}

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		s.IsString = true
		return json.Unmarshal(data, &s.Text)
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		s.IsString = true
		s.Text = string(data)
		return nil
	}
	s.Blocks = blocks
	return nil
}

// ContentBlock is a tagged content fragment. The Type discriminator selects
// which of the remaining fields are meaningful:
//
//	text        Text
//	image       Source
//	tool_use    ID, Name, Input
//	tool_result ToolUseID, Content, IsError
type ContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	Source *ImageSource `json:"source,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   *MessageContent `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// ImageSource carries base64 image data.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Tool is an Anthropic tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// MessagesResponse is the Anthropic /v1/messages response body.
type MessagesResponse struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Role         string          `json:"role"`
	Model        string          `json:"model"`
	Content      []ResponseBlock `json:"content"`
	StopReason   *string         `json:"stop_reason"`
	StopSequence *string         `json:"stop_sequence"`
	Usage        Usage           `json:"usage"`
}

// ResponseBlock is an output content block: "text" or "tool_use".
type ResponseBlock struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`
}

// Usage is the Anthropic token accounting pair.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ErrorResponse is the canonical Anthropic error envelope.
type ErrorResponse struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error taxonomy type and a human-readable message.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewError builds an error envelope.
func NewError(errType, message string) *ErrorResponse {
	return &ErrorResponse{
		Type: "error",
		Error: ErrorDetail{
			Type:    errType,
			Message: message,
		},
	}
}
