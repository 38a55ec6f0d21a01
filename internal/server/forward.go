package server

import (
	"bytes"
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"time"
)

// Upstream call timeouts. Streaming responses are allowed to run much
// longer than a single completion round trip.
const (
	nonStreamingTimeout = 120 * time.Second
	streamingTimeout    = 600 * time.Second
)

// UpstreamClient posts translated requests to the target chat-completions
// endpoint. Two http.Clients carry the two timeout regimes.
type UpstreamClient struct {
	endpoint     string
	nonStreaming *http.Client
	streaming    *http.Client
}

// NewUpstreamClient builds a client for the given base endpoint (for
// example "https://api.openai.com/v1"). skipTLSVerify disables certificate
// verification on the upstream connection only.
func NewUpstreamClient(endpoint string, skipTLSVerify bool) *UpstreamClient {
	var transport http.RoundTripper
	if skipTLSVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &UpstreamClient{
		endpoint:     strings.TrimRight(endpoint, "/"),
		nonStreaming: &http.Client{Timeout: nonStreamingTimeout, Transport: transport},
		streaming:    &http.Client{Timeout: streamingTimeout, Transport: transport},
	}
}

// PostChatCompletions sends the OpenAI request body upstream. authorization
// is the full header value ("Bearer …") or empty for none. The caller owns
// the response body.
func (uc *UpstreamClient) PostChatCompletions(ctx context.Context, body []byte, authorization string, streaming bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uc.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
		return uc.streaming.Do(req)
	}
	return uc.nonStreaming.Do(req)
}
