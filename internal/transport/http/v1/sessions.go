package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/livecoach/internal/auth"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/repository"
)

// StartSession starts a live session for the caller.
// POST /v1/sessions
func (h *Handler) StartSession(c echo.Context) error {
	var req domain.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Type != "" && !req.Type.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown session type: " + string(req.Type)})
	}

	session, err := h.service.StartSession(c.Request().Context(), auth.FromContext(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

// ListSessions lists the caller's sessions.
// GET /v1/sessions?status=&type=&order_by=&desc=&limit=
func (h *Handler) ListSessions(c echo.Context) error {
	filter := store.SessionFilter{
		Status:  domain.SessionStatus(c.QueryParam("status")),
		Type:    domain.SessionType(c.QueryParam("type")),
		OrderBy: c.QueryParam("order_by"),
		Desc:    c.QueryParam("desc") == "true",
		Limit:   50,
	}
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			filter.Limit = val
		}
	}

	sessions, err := h.service.ListSessions(c.Request().Context(), auth.FromContext(c), filter)
	if err != nil {
		return respondError(c, err)
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// GetSessionHistory returns everything recorded for one of the caller's sessions.
// GET /v1/sessions/:session_id
func (h *Handler) GetSessionHistory(c echo.Context) error {
	history, err := h.service.GetSessionHistory(c.Request().Context(), auth.FromContext(c), c.Param("session_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

// GetCurrentSession returns a snapshot of the live session.
// GET /v1/sessions/current
func (h *Handler) GetCurrentSession(c echo.Context) error {
	snap, err := h.service.Snapshot(auth.FromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// StopSession stops the live session. A failed final flush is reported
// with the completed session.
// POST /v1/sessions/current/stop
func (h *Handler) StopSession(c echo.Context) error {
	session, err := h.service.StopSession(c.Request().Context(), auth.FromContext(c))
	if err != nil {
		if session.ID != "" {
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{
				"session": session,
				"error":   err.Error(),
			})
		}
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// PauseSession pauses the live session.
// POST /v1/sessions/current/pause
func (h *Handler) PauseSession(c echo.Context) error {
	session, err := h.service.PauseSession(c.Request().Context(), auth.FromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// ResumeSession resumes the live session.
// POST /v1/sessions/current/resume
func (h *Handler) ResumeSession(c echo.Context) error {
	session, err := h.service.ResumeSession(c.Request().Context(), auth.FromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// ScreenRequest toggles screen analysis.
type ScreenRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetScreenAnalysis toggles screen analysis of the live session.
// POST /v1/sessions/current/screen
func (h *Handler) SetScreenAnalysis(c echo.Context) error {
	var req ScreenRequest
	if err := c.Bind(&req); err != nil || req.Enabled == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "enabled is required"})
	}
	session, err := h.service.SetScreenAnalysis(c.Request().Context(), auth.FromContext(c), *req.Enabled)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}
