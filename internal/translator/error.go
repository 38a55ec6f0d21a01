package translator

import (
	"github.com/tidwall/gjson"

	"github.com/cc-launcher/cc-launcher/internal/protocol"
)

// Error taxonomy of the client-facing (Anthropic) dialect.
const (
	ErrTypeInvalidRequest = "invalid_request_error"
	ErrTypeAuthentication = "authentication_error"
	ErrTypeOverloaded     = "overloaded_error"
	ErrTypeAPI            = "api_error"
)

// errorTypeMap translates OpenAI error type/code values into the Anthropic
// taxonomy. Anything unlisted collapses to api_error.
var errorTypeMap = map[string]string{
	"invalid_request_error": "invalid_request_error",
	"authentication_error":  "authentication_error",
	"permission_error":      "permission_error",
	"not_found_error":       "not_found_error",
	"rate_limit_error":      "rate_limit_error",
	"server_error":          "api_error",
	"timeout":               "overloaded_error",
}

// TranslateError converts an upstream error body — OpenAI-shaped, already
// Anthropic-shaped, or any other JSON — into the canonical Anthropic error
// envelope. Feeding it an Anthropic envelope returns an equal envelope.
func TranslateError(body []byte) *protocol.ErrorResponse {
	errField := gjson.GetBytes(body, "error")

	// Already Anthropic-shaped: pass through.
	if gjson.GetBytes(body, "type").String() == "error" && errField.Exists() {
		return protocol.NewError(
			errField.Get("type").String(),
			errField.Get("message").String(),
		)
	}

	// Some backends return error as a bare string.
	if errField.Type == gjson.String {
		return protocol.NewError(ErrTypeAPI, errField.String())
	}

	sourceType := errField.Get("type").String()
	if sourceType == "" {
		sourceType = errField.Get("code").String()
	}
	mapped, ok := errorTypeMap[sourceType]
	if !ok {
		mapped = ErrTypeAPI
	}

	message := errField.Get("message").String()
	if message == "" {
		message = gjson.GetBytes(body, "message").String()
	}
	if message == "" {
		message = gjson.GetBytes(body, "detail").String()
	}
	if message == "" {
		if errField.Exists() {
			message = "An error occurred"
		} else {
			message = string(body)
		}
	}

	return protocol.NewError(mapped, message)
}
