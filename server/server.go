// Package server exposes the assistant over HTTP: blocking and streaming
// question answering, classification and health. Routing is gin-based; the
// handlers are thin adapters over the cora.Assistant pipeline.
package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	cora "github.com/rayied/cora"
	"github.com/rayied/cora/core"
	"github.com/rayied/cora/logging"
)

// Version is reported by the health and root endpoints.
const Version = "2.0.0"

// Options configures the HTTP server.
type Options struct {
	// Logger records request handling failures. Defaults to NoOp.
	Logger logging.Logger
	// ReleaseMode silences gin's debug output.
	ReleaseMode bool
}

// Server wraps the assistant behind an HTTP API.
type Server struct {
	assistant *cora.Assistant
	engine    *gin.Engine
	logger    logging.Logger
}

// New constructs the server and registers its routes.
func New(assistant *cora.Assistant, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		ReleaseMode: true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		assistant: assistant,
		engine:    gin.New(),
		logger:    opts.Logger,
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleRoot)
	s.engine.GET("/health", s.handleHealth)
	s.engine.POST("/ask", s.handleAsk)
	s.engine.POST("/ask/stream", s.handleAskStream)
	s.engine.POST("/classify", s.handleClassify)
}

// Handler returns the underlying http.Handler (for tests and custom servers).
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves HTTP on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("HTTP server listening", "addr", addr)
	return s.engine.Run(addr)
}

type askPayload struct {
	Question  string `json:"question" binding:"required"`
	Language  string `json:"language"`
	AppName   string `json:"app_name"`
	SessionID string `json:"session_id"`
}

type classifyPayload struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "Cora API",
		"version": Version,
		"endpoints": gin.H{
			"/classify":   "POST - Classify support text",
			"/ask":        "POST - Answer questions from knowledge base",
			"/ask/stream": "POST - Stream an answer",
			"/health":     "GET - Health check",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"version":         Version,
		"active_sessions": s.assistant.Sessions().ActiveCount(),
	})
}

func (s *Server) handleAsk(c *gin.Context) {
	var payload askPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Question field cannot be empty"})
		return
	}

	answer, err := s.assistant.Ask(c.Request.Context(), cora.AskRequest{
		SessionID: payload.SessionID,
		Question:  payload.Question,
		Language:  payload.Language,
		AppName:   payload.AppName,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(statusForAnswer(answer), answer)
}

// handleAskStream streams the answer as server-sent events. The session id is
// exposed in the X-Session-ID response header before the first chunk, since a
// streaming body has no envelope to carry it.
func (s *Server) handleAskStream(c *gin.Context) {
	var payload askPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Question field cannot be empty"})
		return
	}

	sessionID, events, err := s.assistant.AskStream(c.Request.Context(), cora.AskRequest{
		SessionID: payload.SessionID,
		Question:  payload.Question,
		Language:  payload.Language,
		AppName:   payload.AppName,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Session-ID", sessionID)

	c.Stream(func(w io.Writer) bool {
		event, ok := <-events
		if !ok {
			return false
		}
		if event.Answer != nil {
			c.SSEvent("done", event.Answer)
			return false
		}
		c.SSEvent("delta", event.Delta)
		return true
	})
}

func (s *Server) handleClassify(c *gin.Context) {
	var payload classifyPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Text field cannot be empty"})
		return
	}

	result, err := s.assistant.Classify(c.Request.Context(), payload.Text)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Error("Classification failed", "error", err)
		c.JSON(status, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func statusForAnswer(answer core.Answer) int {
	switch answer.Kind {
	case core.Unavailable:
		return http.StatusServiceUnavailable
	case core.Failed:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
