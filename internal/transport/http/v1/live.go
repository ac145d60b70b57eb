package v1

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/livecoach/internal/auth"
	"github.com/xiaot623/gogo/livecoach/internal/capture"
	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

const (
	maxAudioUpload = 4 << 20
	maxFrameUpload = 16 << 20

	defaultInsightWindow = 5 * time.Minute
)

// UploadAudio feeds raw PCM16LE audio into the live session.
// POST /v1/sessions/current/audio?source=system
func (h *Handler) UploadAudio(c echo.Context) error {
	pcm, err := io.ReadAll(io.LimitReader(c.Request().Body, maxAudioUpload+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read body"})
	}
	if len(pcm) == 0 || len(pcm) > maxAudioUpload {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "audio body must be between 1 byte and 4MiB"})
	}
	system := c.QueryParam("source") == "system"
	if err := h.service.PushAudio(auth.FromContext(c), pcm, system); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{"ok": true, "bytes": len(pcm)})
}

// UploadFrame offers a screen capture to the live session. The body is the
// encoded image; X-Window-Label names the captured window.
// POST /v1/sessions/current/frames
func (h *Handler) UploadFrame(c echo.Context) error {
	image, err := io.ReadAll(io.LimitReader(c.Request().Body, maxFrameUpload+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read body"})
	}
	if len(image) > maxFrameUpload {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "frame too large"})
	}
	mimeType := c.Request().Header.Get(echo.HeaderContentType)
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	still := capture.Still{
		Image:       image,
		MIMEType:    mimeType,
		WindowLabel: c.Request().Header.Get("X-Window-Label"),
	}
	if err := h.service.PushFrame(auth.FromContext(c), still); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]bool{"ok": true})
}

// GetTranscript returns the assembled transcript of the live session.
// GET /v1/sessions/current/transcript
func (h *Handler) GetTranscript(c echo.Context) error {
	transcript, segments, err := h.service.LiveTranscript(auth.FromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	if segments == nil {
		segments = []domain.TranscriptSegment{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"transcript": transcript,
		"segments":   segments,
	})
}

// GetSuggestions returns the suggestions of the live session.
// GET /v1/sessions/current/suggestions
func (h *Handler) GetSuggestions(c echo.Context) error {
	suggestions, err := h.service.Suggestions(auth.FromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	if suggestions == nil {
		suggestions = []domain.Suggestion{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

// GetAnalyses returns the retained screen analyses.
// GET /v1/sessions/current/analyses
func (h *Handler) GetAnalyses(c echo.Context) error {
	history, latest, err := h.service.Analyses(auth.FromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	if history == nil {
		history = []domain.VisualAnalysis{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"analyses": history,
		"latest":   latest,
	})
}

// GetActiveFeedback returns the non-dismissed feedback above low priority.
// GET /v1/sessions/current/feedback
func (h *Handler) GetActiveFeedback(c echo.Context) error {
	feedback, err := h.service.ActiveFeedbacks(auth.FromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	if feedback == nil {
		feedback = []domain.FeedbackEvent{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"feedback": feedback})
}

// GetRecentInsights returns the feedback created within window_ms (5m default).
// GET /v1/sessions/current/insights?window_ms=
func (h *Handler) GetRecentInsights(c echo.Context) error {
	window := defaultInsightWindow
	if w := c.QueryParam("window_ms"); w != "" {
		val, err := strconv.ParseInt(w, 10, 64)
		if err != nil || val <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "window_ms must be a positive integer"})
		}
		window = time.Duration(val) * time.Millisecond
	}
	insights, err := h.service.RecentInsights(auth.FromContext(c), window)
	if err != nil {
		return respondError(c, err)
	}
	if insights == nil {
		insights = []domain.FeedbackEvent{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"insights": insights})
}

// GetLiveAnalytics returns the analytics of the live session.
// GET /v1/sessions/current/analytics
func (h *Handler) GetLiveAnalytics(c echo.Context) error {
	analytics, err := h.service.LiveAnalytics(auth.FromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, analytics)
}

// UseSuggestion marks a suggestion of the live session as used.
// POST /v1/suggestions/:suggestion_id/use
func (h *Handler) UseSuggestion(c echo.Context) error {
	suggestion, err := h.service.MarkSuggestionUsed(auth.FromContext(c), c.Param("suggestion_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, suggestion)
}

// DismissFeedback dismisses a feedback event of the live session.
// POST /v1/feedback/:feedback_id/dismiss
func (h *Handler) DismissFeedback(c echo.Context) error {
	feedback, err := h.service.DismissFeedback(auth.FromContext(c), c.Param("feedback_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, feedback)
}

// GetAnalyticsSummary aggregates analytics across the caller's sessions.
// GET /v1/analytics/summary
func (h *Handler) GetAnalyticsSummary(c echo.Context) error {
	summary, err := h.service.AnalyticsSummary(c.Request().Context(), auth.FromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}
