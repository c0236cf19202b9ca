// Package middleware holds the gin middleware.
package middleware

import (
	"ai-grader/pkg/log"
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// maxLoggedBody caps how much of a request or response body is logged.
const maxLoggedBody = 2048

// bodyLogWriter tees the response body into a buffer.
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// RequestID reuses the caller's X-Request-ID or generates one, and echoes it
// on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestId", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one structured line per request. Websocket upgrades are
// logged without bodies.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		if c.IsWebsocket() {
			c.Next()
			log.Infow("HTTP Request Log",
				"requestId", c.GetString("requestId"),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"statusCode", c.Writer.Status(),
				"latency", time.Since(startTime).String(),
				"clientIP", c.ClientIP(),
			)
			return
		}

		var requestBody []byte
		var readErr error
		if c.Request.Body != nil {
			requestBody, readErr = io.ReadAll(c.Request.Body)
		}
		// Replay the body, including a read failure such as an exceeded BodyLimit.
		var replay io.Reader = bytes.NewReader(requestBody)
		if readErr != nil {
			replay = io.MultiReader(replay, errReader{readErr})
		}
		c.Request.Body = io.NopCloser(replay)

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		log.Infow("HTTP Request Log",
			"requestId", c.GetString("requestId"),
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestBody", truncate(requestBody),
			"responseBody", truncate(blw.body.Bytes()),
		)
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "…"
	}
	return string(b)
}
