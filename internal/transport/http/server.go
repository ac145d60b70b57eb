// Package http provides the HTTP server of the coaching API.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/livecoach/internal/auth"
	"github.com/xiaot623/gogo/livecoach/internal/hub"
	"github.com/xiaot623/gogo/livecoach/internal/service"
	v1 "github.com/xiaot623/gogo/livecoach/internal/transport/http/v1"
)

// NewServer creates and configures the HTTP server: REST controls and
// queries plus the live websocket.
func NewServer(svc *service.Service, h *hub.Hub, provider auth.Provider, ws v1.WSConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc, h, provider, ws)

	// Register Routes
	v1Handler.RegisterRoutes(e)

	return e
}
