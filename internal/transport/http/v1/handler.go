// Package v1 provides the HTTP and websocket handlers of the coaching API.
package v1

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/livecoach/internal/auth"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/hub"
	"github.com/xiaot623/gogo/livecoach/internal/service"
)

// WSConfig tunes websocket connections.
type WSConfig struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
}

// Handler handles HTTP requests.
type Handler struct {
	service  *service.Service
	hub      *hub.Hub
	auth     auth.Provider
	ws       WSConfig
	upgrader websocket.Upgrader
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, h *hub.Hub, provider auth.Provider, ws WSConfig) *Handler {
	if ws.PingInterval <= 0 {
		ws.PingInterval = 30 * time.Second
	}
	if ws.WriteTimeout <= 0 {
		ws.WriteTimeout = 10 * time.Second
	}
	if ws.ReadTimeout <= 0 {
		ws.ReadTimeout = 60 * time.Second
	}
	if ws.MaxMessageSize <= 0 {
		ws.MaxMessageSize = 1 << 20
	}
	return &Handler{
		service: svc,
		hub:     h,
		auth:    provider,
		ws:      ws,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/v1/ws", h.HandleWebSocket)

	api := e.Group("/v1", auth.Middleware(h.auth))

	// Session lifecycle
	api.POST("/sessions", h.StartSession)
	api.GET("/sessions", h.ListSessions)
	api.GET("/sessions/current", h.GetCurrentSession)
	api.GET("/sessions/:session_id", h.GetSessionHistory)
	api.POST("/sessions/current/stop", h.StopSession)
	api.POST("/sessions/current/pause", h.PauseSession)
	api.POST("/sessions/current/resume", h.ResumeSession)
	api.POST("/sessions/current/screen", h.SetScreenAnalysis)

	// Capture uploads
	api.POST("/sessions/current/audio", h.UploadAudio)
	api.POST("/sessions/current/frames", h.UploadFrame)

	// Live queries
	api.GET("/sessions/current/transcript", h.GetTranscript)
	api.GET("/sessions/current/suggestions", h.GetSuggestions)
	api.GET("/sessions/current/analyses", h.GetAnalyses)
	api.GET("/sessions/current/feedback", h.GetActiveFeedback)
	api.GET("/sessions/current/insights", h.GetRecentInsights)
	api.GET("/sessions/current/analytics", h.GetLiveAnalytics)

	api.POST("/suggestions/:suggestion_id/use", h.UseSuggestion)
	api.POST("/feedback/:feedback_id/dismiss", h.DismissFeedback)
	api.GET("/analytics/summary", h.GetAnalyticsSummary)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":        "healthy",
		"version":       "0.1.0",
		"live_sessions": h.service.LiveSessionCount(),
	})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoActiveSession):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionAlreadyActive), errors.Is(err, domain.ErrSessionStopped):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c echo.Context, err error) error {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
