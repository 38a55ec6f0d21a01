package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cc-launcher/cc-launcher/internal/obs"
	"github.com/cc-launcher/cc-launcher/internal/protocol"
	"github.com/cc-launcher/cc-launcher/internal/translator"
	"github.com/cc-launcher/cc-launcher/internal/translator/stream"
)

// placeholderStreamDelay paces the fabricated placeholder stream so clients
// see incremental delivery.
const placeholderStreamDelay = 50 * time.Millisecond

// maxStreamLine bounds one upstream SSE line; tool arguments can be large.
const maxStreamLine = 1 << 20

// handleMessages is the POST /v1/messages dispatcher.
func (s *Server) handleMessages(c *gin.Context) {
	start := time.Now()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.failRequest(c, start, http.StatusBadRequest, "", false,
			translator.ErrTypeInvalidRequest, "Cannot read request body")
		return
	}

	var req protocol.MessagesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.failRequest(c, start, http.StatusBadRequest, "", false,
			translator.ErrTypeInvalidRequest, "Request body is not valid JSON: "+err.Error())
		return
	}

	originalModel := req.Model
	if originalModel == "" {
		originalModel = protocol.DefaultModel
	}

	logrus.Infof("-> /v1/messages | model=%s | messages=%d | stream=%v",
		originalModel, len(req.Messages), req.Stream)

	if s.config.UsePlaceholderMode {
		s.servePlaceholder(c, start, originalModel, req.Stream)
		return
	}

	chatReq, err := translator.TranslateRequest(&req, s.config.MapModel, s.config.DefaultMaxTokens)
	if err != nil {
		s.failRequest(c, start, http.StatusBadRequest, originalModel, req.Stream,
			translator.ErrTypeInvalidRequest, err.Error())
		return
	}
	payload, err := json.Marshal(chatReq)
	if err != nil {
		s.failRequest(c, start, http.StatusInternalServerError, originalModel, req.Stream,
			translator.ErrTypeAPI, "Cannot encode upstream request")
		return
	}

	resp, err := s.upstream.PostChatCompletions(c.Request.Context(), payload, s.authorization(c.Request.Context()), req.Stream)
	if err != nil {
		status, errType, message := classifyUpstreamError(err)
		logrus.Errorf("upstream request failed: %v", err)
		s.failRequest(c, start, status, originalModel, req.Stream, errType, message)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstreamBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		envelope := translator.TranslateError(upstreamBody)
		logrus.Warnf("upstream returned %d: %s", resp.StatusCode, envelope.Error.Message)
		s.record(c, start, resp.StatusCode, originalModel, req.Stream, protocol.Usage{}, envelope.Error.Type)
		c.JSON(resp.StatusCode, envelope)
		return
	}

	if req.Stream {
		usage := s.streamResponse(c, resp.Body, originalModel)
		s.record(c, start, http.StatusOK, originalModel, true, usage, "")
		return
	}

	upstreamBody, err := io.ReadAll(resp.Body)
	if err != nil {
		s.failRequest(c, start, http.StatusBadGateway, originalModel, false,
			translator.ErrTypeAPI, "Cannot read upstream response")
		return
	}

	var completion protocol.ChatCompletion
	if err := json.Unmarshal(upstreamBody, &completion); err != nil {
		logrus.Errorf("upstream returned invalid JSON: %v", err)
		s.failRequest(c, start, http.StatusBadGateway, originalModel, false,
			translator.ErrTypeAPI, "Target endpoint returned invalid JSON")
		return
	}

	out := translator.TranslateResponse(&completion, originalModel)
	s.record(c, start, http.StatusOK, originalModel, false, out.Usage, "")
	c.JSON(http.StatusOK, out)
}

// streamResponse relays the upstream SSE body through the stream translator.
// Returns the token usage observed on the stream.
func (s *Server) streamResponse(c *gin.Context, upstream io.Reader, originalModel string) protocol.Usage {
	setSSEHeaders(c)
	c.Writer.WriteHeader(http.StatusOK)

	tr := stream.New(originalModel)

	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("panic while streaming: %v", r)
			writeEvents(c, []stream.Event{stream.ErrorEvent("Stream translation failed")})
		}
	}()

	scanner := bufio.NewScanner(upstream)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)

	for scanner.Scan() {
		select {
		case <-c.Request.Context().Done():
			logrus.Info("client disconnected, aborting stream")
			return tr.Usage()
		default:
		}
		writeEvents(c, tr.TranslateChunk(scanner.Text()))
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		logrus.Warnf("upstream stream ended abnormally: %v", err)
	}

	// Upstreams that hang up without [DONE] still owe the client a terminal
	// event pair.
	writeEvents(c, tr.Finish())
	return tr.Usage()
}

// servePlaceholder answers without contacting the upstream.
func (s *Server) servePlaceholder(c *gin.Context, start time.Time, originalModel string, streaming bool) {
	if !streaming {
		out := translator.PlaceholderResponse(originalModel)
		s.record(c, start, http.StatusOK, originalModel, false, out.Usage, "")
		c.JSON(http.StatusOK, out)
		return
	}

	setSSEHeaders(c)
	c.Writer.WriteHeader(http.StatusOK)

	events := stream.PlaceholderEvents(originalModel)
	for i, ev := range events {
		select {
		case <-c.Request.Context().Done():
			return
		default:
		}
		writeEvents(c, []stream.Event{ev})
		if i < len(events)-1 {
			time.Sleep(placeholderStreamDelay)
		}
	}
	s.record(c, start, http.StatusOK, originalModel, true,
		protocol.Usage{InputTokens: translator.PlaceholderInputTokens, OutputTokens: translator.PlaceholderOutputTokens}, "")
}

// authorization picks the upstream Authorization header value. Dev mode wins
// over OAuth, OAuth over the static key. Empty means no header.
func (s *Server) authorization(ctx context.Context) string {
	if s.config.DevMode {
		return "Bearer dev-mock-token"
	}

	if s.oauth != nil {
		token, err := s.oauth.GetToken(ctx)
		if err != nil {
			logrus.Errorf("cannot obtain OAuth token: %v", err)
		} else if token != "" {
			return "Bearer " + token
		}
	}

	if s.config.IsAPIKeyConfigured() {
		return "Bearer " + s.config.TargetAPIKey
	}

	logrus.Warn("no upstream authentication configured, sending unauthenticated request")
	return ""
}

// classifyUpstreamError maps a transport-level failure to a client error.
// Timeouts surface as overloaded (529), everything else as a bad gateway.
func classifyUpstreamError(err error) (status int, errType, message string) {
	var urlErr *url.Error
	if (errors.As(err, &urlErr) && urlErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return 529, translator.ErrTypeOverloaded, "Request to target endpoint timed out"
	}
	return http.StatusBadGateway, translator.ErrTypeAPI, "Cannot reach target endpoint: " + err.Error()
}

// failRequest records the failure and writes the error envelope.
func (s *Server) failRequest(c *gin.Context, start time.Time, status int, model string, streaming bool, errType, message string) {
	s.record(c, start, status, model, streaming, protocol.Usage{}, errType)
	c.JSON(status, protocol.NewError(errType, message))
}

// record feeds the dashboard logger and the metrics tracker.
func (s *Server) record(c *gin.Context, start time.Time, status int, model string, streaming bool, usage protocol.Usage, errType string) {
	duration := time.Since(start)

	s.logger.LogAPICall(obs.APICall{
		Method:       c.Request.Method,
		Path:         c.Request.URL.Path,
		Status:       status,
		DurationMs:   duration.Milliseconds(),
		Model:        model,
		Streaming:    streaming,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		ErrorType:    errType,
	})

	metricStatus := "success"
	if errType != "" || status >= 400 {
		metricStatus = "error"
	}
	s.tracker.RecordUsage(c.Request.Context(), obs.UsageOptions{
		Model:        model,
		RequestModel: model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Streamed:     streaming,
		Status:       metricStatus,
		LatencyMs:    duration.Milliseconds(),
	})

	logrus.Infof("<- %d | model=%s | %dms | in=%d out=%d",
		status, model, duration.Milliseconds(), usage.InputTokens, usage.OutputTokens)
}
