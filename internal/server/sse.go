package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cc-launcher/cc-launcher/internal/translator/stream"
)

// setSSEHeaders prepares the response for an Anthropic event stream.
// X-Accel-Buffering keeps reverse proxies from buffering the frames.
func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// writeEvent writes one SSE frame. The framing is written by hand instead
// of gin's SSEvent so the `event: name` / `data: json` layout matches the
// Anthropic wire format exactly.
func writeEvent(w io.Writer, ev stream.Event) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
}

// writeEvents writes a batch of frames and flushes once.
func writeEvents(c *gin.Context, events []stream.Event) {
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		writeEvent(c.Writer, ev)
	}
	if flusher, ok := c.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
}
