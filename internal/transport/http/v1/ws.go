package v1

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/livecoach/internal/domain"
	"github.com/xiaot623/gogo/livecoach/internal/hub"
	"github.com/xiaot623/gogo/livecoach/internal/protocol"
)

// wsClient is the per-connection state of the websocket reader.
type wsClient struct {
	conn       *hub.Connection
	registered bool
	closeOnce  sync.Once
}

// HandleWebSocket upgrades the connection and streams the caller's live
// events. A client whose upgrade request carries no identity must send
// hello first. Binary messages are microphone PCM.
// GET /v1/ws
func (h *Handler) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}
	ws.SetReadLimit(h.ws.MaxMessageSize)

	client := &wsClient{conn: h.hub.NewConnection(ws, "")}
	go h.writePump(client.conn)

	if userID, err := h.auth.UserID(c.Request()); err == nil {
		h.bind(client, userID, "")
	}
	go h.readPump(client)
	return nil
}

func (h *Handler) bind(client *wsClient, userID, requestID string) {
	client.conn.UserID = userID
	h.hub.Register(client.conn)
	client.registered = true

	ack := protocol.HelloAckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
		},
		UserID: userID,
	}
	if snap, err := h.service.Snapshot(userID); err == nil {
		ack.SessionID = snap.Session.ID
	}
	_ = h.hub.SendJSONToConnection(client.conn, ack)
	log.Printf("WebSocket bound to user %s", userID)
}

// release hands the send channel back to whoever owns it: the hub once
// registered, otherwise the reader.
func (h *Handler) release(client *wsClient) {
	client.closeOnce.Do(func() {
		if client.registered {
			h.hub.Unregister(client.conn)
			return
		}
		close(client.conn.Send)
	})
}

func (h *Handler) readPump(client *wsClient) {
	conn := client.conn
	defer func() {
		h.release(client)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(h.ws.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.ws.ReadTimeout))
		return nil
	})

	for {
		msgType, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(h.ws.ReadTimeout))

		if msgType == websocket.BinaryMessage {
			h.handleAudio(client, message)
			continue
		}
		h.handleMessage(client, message)
	}
}

func (h *Handler) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(h.ws.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(h.ws.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.ws.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handleAudio(client *wsClient, pcm []byte) {
	if !client.registered {
		h.sendError(client.conn, "", protocol.ErrorCodeHelloRequired, "must send hello first")
		return
	}
	if err := h.service.PushAudio(client.conn.UserID, pcm, false); err != nil {
		h.sendServiceError(client.conn, "", err)
	}
}

// handleMessage dispatches control messages.
func (h *Handler) handleMessage(client *wsClient, data []byte) {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		h.sendError(client.conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	if base.Type == protocol.TypeHello {
		h.handleHello(client, data)
		return
	}
	if !client.registered {
		h.sendError(client.conn, base.RequestID, protocol.ErrorCodeHelloRequired, "must send hello first")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	userID := client.conn.UserID

	var result interface{}
	var err error
	switch base.Type {
	case protocol.TypeDismissFeedback:
		var msg protocol.DismissFeedbackMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.FeedbackID == "" {
			h.sendError(client.conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "feedback_id is required")
			return
		}
		result, err = h.service.DismissFeedback(userID, msg.FeedbackID)
	case protocol.TypeUseSuggestion:
		var msg protocol.UseSuggestionMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.SuggestionID == "" {
			h.sendError(client.conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "suggestion_id is required")
			return
		}
		result, err = h.service.MarkSuggestionUsed(userID, msg.SuggestionID)
	case protocol.TypePause:
		result, err = h.service.PauseSession(ctx, userID)
	case protocol.TypeResume:
		result, err = h.service.ResumeSession(ctx, userID)
	case protocol.TypeSetScreen:
		var msg protocol.SetScreenMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(client.conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "invalid set_screen message")
			return
		}
		result, err = h.service.SetScreenAnalysis(ctx, userID, msg.Enabled)
	default:
		h.sendError(client.conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
		return
	}
	if err != nil {
		h.sendServiceError(client.conn, base.RequestID, err)
		return
	}

	_ = h.hub.SendJSONToConnection(client.conn, protocol.AckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeAck,
			Ts:        time.Now().UnixMilli(),
			RequestID: base.RequestID,
		},
		Data: result,
	})
}

func (h *Handler) handleHello(client *wsClient, data []byte) {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(client.conn, "", protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return
	}
	if client.registered {
		h.sendError(client.conn, msg.RequestID, protocol.ErrorCodeInvalidMessage, "connection already bound")
		return
	}
	userID, err := h.auth.Hello(msg.UserID, msg.APIKey)
	if err != nil {
		h.sendError(client.conn, msg.RequestID, protocol.ErrorCodeUnauthorized, err.Error())
		return
	}
	h.bind(client, userID, msg.RequestID)
}

func (h *Handler) sendServiceError(conn *hub.Connection, requestID string, err error) {
	code := protocol.ErrorCodeInternalError
	switch {
	case errors.Is(err, domain.ErrNoActiveSession):
		code = protocol.ErrorCodeNoActiveSession
	case errors.Is(err, domain.ErrNotFound):
		code = protocol.ErrorCodeNotFound
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrSessionStopped):
		code = protocol.ErrorCodeInvalidState
	default:
		log.Printf("ERROR: websocket control for user %s failed: %v", conn.UserID, err)
	}
	h.sendError(conn, requestID, code, err.Error())
}

// sendError sends an error message to a connection.
func (h *Handler) sendError(conn *hub.Connection, requestID, code, message string) {
	errMsg := protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
		},
		Code:    code,
		Message: message,
	}
	_ = h.hub.SendJSONToConnection(conn, errMsg)
}
