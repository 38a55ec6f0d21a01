// Package stream drives the OpenAI-to-Anthropic streaming state machine.
//
// The two dialects disagree on when content-block metadata must be known:
// OpenAI interleaves the tool name with its arguments, while Anthropic
// requires the name and id on content_block_start. The translator buffers
// tool-call fragments until the name is known and only then opens the block.
// Block indices are monotonic and never reused.
package stream

import (
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/cc-launcher/cc-launcher/internal/protocol"
	"github.com/cc-launcher/cc-launcher/internal/translator"
)

// Anthropic SSE event names.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventError             = "error"
)

// Block and delta type tags.
const (
	blockTypeText      = "text"
	blockTypeToolUse   = "tool_use"
	deltaTypeText      = "text_delta"
	deltaTypeInputJSON = "input_json_delta"
)

const donePayload = "data: [DONE]"

// Event is one Anthropic SSE frame: `event: Name\ndata: Data\n\n`.
type Event struct {
	Name string
	Data []byte
}

// toolCall accumulates one upstream tool call across chunks, keyed by the
// upstream index. The content block is withheld until the name is known.
type toolCall struct {
	id           string
	name         string
	inputJSON    strings.Builder
	blockStarted bool
}

// Translator consumes upstream SSE lines and produces Anthropic SSE events.
// One instance serves one streaming response; it is single-writer and does
// no I/O.
type Translator struct {
	messageID string
	model     string

	messageStarted bool
	blockOpen      bool
	blockIndex     int
	blockType      string
	toolCalls      map[int]*toolCall

	inputTokens  int
	outputTokens int
	stopReason   string

	done    bool
	errored bool
}

// New creates a translator for one streaming response. originalModel is
// echoed back to the client unchanged.
func New(originalModel string) *Translator {
	if originalModel == "" {
		originalModel = protocol.DefaultModel
	}
	return &Translator{
		messageID: protocol.NewMessageID(),
		model:     originalModel,
		blockType: blockTypeText,
		toolCalls: make(map[int]*toolCall),
	}
}

// MessageID returns the identifier issued at stream start.
func (t *Translator) MessageID() string { return t.messageID }

// Usage returns the token counts recorded so far.
func (t *Translator) Usage() protocol.Usage {
	return protocol.Usage{InputTokens: t.inputTokens, OutputTokens: t.outputTokens}
}

// TranslateChunk converts one upstream SSE line into zero or more Anthropic
// events. Lines after [DONE] are ignored: [DONE] is the authoritative
// terminator.
func (t *Translator) TranslateChunk(line string) []Event {
	line = strings.TrimSpace(line)
	if line == "" || t.done {
		return nil
	}

	if line == donePayload {
		t.done = true
		return t.streamEnd()
	}

	payload, ok := strings.CutPrefix(line, "data: ")
	if !ok {
		logrus.Debugf("skipping unexpected stream line: %.100s", line)
		return nil
	}

	var chunk protocol.ChatChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		logrus.Warnf("cannot parse stream chunk: %v (%.200s)", err, payload)
		return nil
	}

	// Some backends deliver errors inside the stream.
	if len(chunk.Error) > 0 && string(chunk.Error) != "null" {
		t.errored = true
		return []Event{t.errorEvent(chunk.Error)}
	}

	if len(chunk.Choices) == 0 {
		// Usage-only final chunk (stream_options.include_usage).
		if chunk.Usage != nil {
			t.inputTokens = chunk.Usage.PromptTokens
			t.outputTokens = chunk.Usage.CompletionTokens
		}
		return nil
	}

	choice := chunk.Choices[0]
	var events []Event

	if !t.messageStarted {
		events = append(events, t.messageStart())
		t.messageStarted = true
	}

	if choice.Delta.Content != "" {
		if !t.blockOpen {
			events = append(events, t.contentBlockStartText())
			t.blockOpen = true
			t.blockType = blockTypeText
		}
		events = append(events, t.textDelta(choice.Delta.Content))
	}

	for _, tc := range choice.Delta.ToolCalls {
		events = append(events, t.translateToolCallDelta(tc)...)
	}

	if chunk.Usage != nil && (chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0) {
		t.inputTokens = chunk.Usage.PromptTokens
		t.outputTokens = chunk.Usage.CompletionTokens
	}

	if choice.FinishReason != "" {
		t.stopReason = translator.MapFinishReason(choice.FinishReason)
		if t.blockOpen {
			events = append(events, t.contentBlockStop())
			t.blockOpen = false
		}
	}

	return events
}

// Finish emits the terminal pair when the upstream closed without [DONE],
// so the client always sees a terminal event. It is a no-op after [DONE] or
// after a stream-embedded error.
func (t *Translator) Finish() []Event {
	if t.done || t.errored {
		return nil
	}
	t.done = true
	return t.streamEnd()
}

func (t *Translator) translateToolCallDelta(tc protocol.ChunkToolCall) []Event {
	state, seen := t.toolCalls[tc.Index]
	if !seen {
		state = &toolCall{id: tc.ID}
		if state.id == "" {
			state.id = protocol.NewToolUseID()
		}
		t.toolCalls[tc.Index] = state
	}
	if tc.ID != "" {
		state.id = tc.ID
	}

	var events []Event

	if tc.Function.Name != "" {
		state.name += tc.Function.Name
	}

	if state.name != "" && !state.blockStarted {
		// The block header needs the name; now that it is known, close the
		// previous block and open this one.
		if t.blockOpen {
			events = append(events, t.contentBlockStop())
			t.blockIndex++
			t.blockOpen = false
		}
		events = append(events, t.contentBlockStartToolUse(state))
		t.blockOpen = true
		t.blockType = blockTypeToolUse
		state.blockStarted = true
	}

	if tc.Function.Arguments != "" {
		state.inputJSON.WriteString(tc.Function.Arguments)
		// Fragments arriving before the block header are buffered only;
		// deltas resume once content_block_start is out.
		if state.blockStarted {
			events = append(events, t.inputJSONDelta(tc.Function.Arguments))
		}
	}

	return events
}

func (t *Translator) messageStart() Event {
	return newEvent(EventMessageStart, map[string]any{
		"type": EventMessageStart,
		"message": map[string]any{
			"id":            t.messageID,
			"type":          "message",
			"role":          "assistant",
			"content":       []any{},
			"model":         t.model,
			"stop_reason":   nil,
			"stop_sequence": nil,
			"usage": map[string]any{
				"input_tokens":  t.inputTokens,
				"output_tokens": t.outputTokens,
			},
		},
	})
}

func (t *Translator) contentBlockStartText() Event {
	return newEvent(EventContentBlockStart, map[string]any{
		"type":  EventContentBlockStart,
		"index": t.blockIndex,
		"content_block": map[string]any{
			"type": blockTypeText,
			"text": "",
		},
	})
}

func (t *Translator) contentBlockStartToolUse(state *toolCall) Event {
	return newEvent(EventContentBlockStart, map[string]any{
		"type":  EventContentBlockStart,
		"index": t.blockIndex,
		"content_block": map[string]any{
			"type":  blockTypeToolUse,
			"id":    state.id,
			"name":  state.name,
			"input": map[string]any{},
		},
	})
}

func (t *Translator) textDelta(text string) Event {
	return newEvent(EventContentBlockDelta, map[string]any{
		"type":  EventContentBlockDelta,
		"index": t.blockIndex,
		"delta": map[string]any{
			"type": deltaTypeText,
			"text": text,
		},
	})
}

func (t *Translator) inputJSONDelta(fragment string) Event {
	return newEvent(EventContentBlockDelta, map[string]any{
		"type":  EventContentBlockDelta,
		"index": t.blockIndex,
		"delta": map[string]any{
			"type":         deltaTypeInputJSON,
			"partial_json": fragment,
		},
	})
}

func (t *Translator) contentBlockStop() Event {
	return newEvent(EventContentBlockStop, map[string]any{
		"type":  EventContentBlockStop,
		"index": t.blockIndex,
	})
}

func (t *Translator) streamEnd() []Event {
	stopReason := t.stopReason
	if stopReason == "" {
		stopReason = translator.StopReasonEndTurn
	}
	return []Event{
		newEvent(EventMessageDelta, map[string]any{
			"type": EventMessageDelta,
			"delta": map[string]any{
				"stop_reason":   stopReason,
				"stop_sequence": nil,
			},
			"usage": map[string]any{
				"output_tokens": t.outputTokens,
			},
		}),
		newEvent(EventMessageStop, map[string]any{
			"type": EventMessageStop,
		}),
	}
}

func (t *Translator) errorEvent(raw json.RawMessage) Event {
	message := gjson.GetBytes(raw, "message").String()
	if message == "" {
		result := gjson.ParseBytes(raw)
		if result.Type == gjson.String {
			message = result.String()
		} else {
			message = string(raw)
		}
	}
	logrus.Errorf("error in upstream stream: %s", message)
	return newEvent(EventError, map[string]any{
		"type": EventError,
		"error": map[string]any{
			"type":    translator.ErrTypeAPI,
			"message": message,
		},
	})
}

// ErrorEvent builds a standalone api_error frame, used when the relay itself
// fails mid-stream.
func ErrorEvent(message string) Event {
	return newEvent(EventError, map[string]any{
		"type": EventError,
		"error": map[string]any{
			"type":    translator.ErrTypeAPI,
			"message": message,
		},
	})
}

func newEvent(name string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payloads are maps of plain values; this cannot fail in practice.
		logrus.Errorf("cannot marshal %s event: %v", name, err)
		data = []byte("{}")
	}
	return Event{Name: name, Data: data}
}
