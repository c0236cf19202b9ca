// Package handler contains the HTTP and websocket handlers.
package handler

import (
	"ai-grader/internal/service"
	"ai-grader/pkg/log"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GradeHandler serves POST /api/grade.
type GradeHandler struct {
	gradingService service.GradingService
	tooLargeText   string
}

// NewGradeHandler creates a new GradeHandler. tooLargeText answers bodies
// over the configured size limit.
func NewGradeHandler(gradingService service.GradingService, tooLargeText string) *GradeHandler {
	return &GradeHandler{gradingService: gradingService, tooLargeText: tooLargeText}
}

// Grade answers every parsable call with 200 and a {result} envelope, upstream
// failures included; callers tell failures apart by the error field or the
// result text. A body of the wrong shape gets 400, an oversized one 413.
func (h *GradeHandler) Grade(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warnw("grade request body too large", "limit", tooLarge.Limit)
			res := service.GradeResult{Err: &service.GradeError{Kind: service.KindTooLarge, Message: h.tooLargeText, Err: err}}
			c.JSON(http.StatusRequestEntityTooLarge, res.Response())
			return
		}
		log.Error("failed to read grade request body", err)
		body = nil
	}

	res := h.gradingService.GradeBody(c.Request.Context(), body)
	status := http.StatusOK
	if res.Err != nil && res.Err.Kind == service.KindInvalidRequest {
		status = http.StatusBadRequest
	}
	c.JSON(status, res.Response())
}
