// Package router assembles the gin engine.
package router

import (
	"ai-grader/internal/controller"
	"ai-grader/internal/handler"
	"ai-grader/internal/middleware"
	"ai-grader/internal/service"
	"ai-grader/web"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the routes need.
type Deps struct {
	GradingService service.GradingService
	// Proxy is what browser sessions grade through.
	Proxy   controller.Proxy
	Session controller.Options
	// MaxBodyBytes caps request bodies; zero means no cap.
	MaxBodyBytes int64
	TooLargeText string
}

// New registers every route on a fresh engine.
func New(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.BodyLimit(deps.MaxBodyBytes), middleware.RequestLogger(), gin.Recovery())

	api := r.Group("/api")
	{
		api.POST("/grade", handler.NewGradeHandler(deps.GradingService, deps.TooLargeText).Grade)
	}

	r.GET("/ws/session", handler.NewSessionHandler(deps.Proxy, deps.Session).Handle)

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", web.Index)
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}
