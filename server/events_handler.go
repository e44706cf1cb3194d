package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/UnKnowSoDev/pianissimo-gacha/auth"
	apperrors "github.com/UnKnowSoDev/pianissimo-gacha/errors"
	"github.com/UnKnowSoDev/pianissimo-gacha/pkg/broadcast"
)

const (
	EventTypeConnected = "connected"
	EventTypeHeartbeat = "heartbeat"
)

// EventsHandler streams live balance and jackpot events to clients over SSE
// or WebSocket. Each connection sees its own balance updates plus the global
// jackpot announcements.
type EventsHandler struct {
	app             *App
	hub             *broadcast.Hub
	logger          zerolog.Logger
	heartbeatPeriod time.Duration
	upgrader        websocket.Upgrader
}

// NewEventsHandler creates an events handler.
func NewEventsHandler(app *App, hub *broadcast.Hub) *EventsHandler {
	return &EventsHandler{
		app:             app,
		hub:             hub,
		logger:          app.logger.With().Str("handler", "events").Logger(),
		heartbeatPeriod: 30 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// EventFrame is one streamed message. Balance never carries omitempty, a
// member drained to exactly zero still sees the value.
type EventFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	UserID    string `json:"userId,omitempty"`
	Username  string `json:"username,omitempty"`
	Balance   int64  `json:"balance"`
	ItemName  string `json:"itemName,omitempty"`
}

// Stream godoc
// @Summary      Stream balance and jackpot events over SSE
// @Tags         events
// @Produce      text/event-stream
// @Security     BearerAuth
// @Router       /gacha/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		Error(c, http.StatusUnauthorized, apperrors.New(apperrors.ErrUnauthorized, "user_id not found in context"))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.WriteHeader(http.StatusOK)

	sender := &sseSender{writer: c.Writer}
	h.stream(c, userID, sender, nil)
}

// StreamWebSocket godoc
// @Summary      Stream balance and jackpot events over WebSocket
// @Tags         events
// @Security     BearerAuth
// @Router       /gacha/events/ws [get]
func (h *EventsHandler) StreamWebSocket(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		Error(c, http.StatusUnauthorized, apperrors.New(apperrors.ErrUnauthorized, "user_id not found in context"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade to WebSocket")
		return
	}
	defer conn.Close() //nolint:errcheck

	writeDeadline := 10 * time.Second
	conn.SetWriteDeadline(time.Now().Add(writeDeadline)) //nolint:errcheck

	done := make(chan struct{})

	// Detect connection close
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(10 * time.Minute)) //nolint:errcheck
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket connection closed unexpectedly")
			} else {
				h.logger.Debug().Err(err).Msg("WebSocket closed normally")
			}
		}
	}()

	// Keep connection alive with pings
	pingTicker := time.NewTicker(30 * time.Second)
	go func() {
		defer pingTicker.Stop()
		for {
			select {
			case <-done:
				return
			case <-pingTicker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
					h.logger.Debug().Err(err).Msg("Failed to send ping")
					return
				}
			}
		}
	}()

	sender := &wsSender{
		conn:          conn,
		done:          done,
		logger:        h.logger,
		writeDeadline: writeDeadline,
	}
	h.stream(c, userID, sender, done)
}

// stream forwards hub events into the sender until the client goes away. The
// connection holds two subscriptions: the member's own channel and the global
// channel, from which only broadcast-keyed events (jackpots) are forwarded so
// one member never streams another member's balance.
func (h *EventsHandler) stream(c *gin.Context, userID string, sender messageSender, done <-chan struct{}) {
	own := h.hub.Subscribe(userID)
	defer h.hub.Unsubscribe(own)
	global := h.hub.Subscribe(broadcast.GlobalKey)
	defer h.hub.Unsubscribe(global)

	if err := sender.Send(h.connectedFrame(c.Request.Context(), userID)); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to send connected event, stopping stream")
		return
	}

	heartbeat := time.NewTicker(h.heartbeatPeriod)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			h.logger.Debug().Msg("WebSocket connection closed, stopping stream")
			return
		case <-heartbeat.C:
			if err := sender.Send(&EventFrame{
				Type:      EventTypeHeartbeat,
				Timestamp: time.Now().Unix(),
			}); err != nil {
				h.logger.Warn().Err(err).Msg("Failed to send heartbeat, stopping stream")
				return
			}
		case event, ok := <-own.Channel:
			if !ok {
				return
			}
			if err := sender.Send(frameFromEvent(event)); err != nil {
				h.logger.Warn().Err(err).Msg("Failed to send event, stopping stream")
				return
			}
		case event, ok := <-global.Channel:
			if !ok {
				return
			}
			if event.Key != broadcast.GlobalKey {
				continue
			}
			if err := sender.Send(frameFromEvent(event)); err != nil {
				h.logger.Warn().Err(err).Msg("Failed to send event, stopping stream")
				return
			}
		}
	}
}

// connectedFrame builds the first frame of a stream. The member's current
// balance is resolved best effort so a freshly connected client shows a
// balance before any spin or label edit produces an event.
func (h *EventsHandler) connectedFrame(ctx context.Context, userID string) *EventFrame {
	frame := &EventFrame{
		Type:      EventTypeConnected,
		Timestamp: time.Now().Unix(),
		UserID:    userID,
	}
	if h.app.balanceProvider == nil {
		return frame
	}

	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	identity, err := h.app.balanceProvider.Resolve(rctx, userID)
	if err != nil {
		h.logger.Debug().Err(err).Str("user_id", userID).Msg("Could not resolve balance for connected frame")
		return frame
	}
	frame.Balance = identity.Balance
	return frame
}

func frameFromEvent(event broadcast.Event) *EventFrame {
	return &EventFrame{
		Type:      event.Type,
		Timestamp: event.Timestamp.Unix(),
		UserID:    event.UserID,
		Username:  event.Username,
		Balance:   event.Balance,
		ItemName:  event.ItemName,
	}
}

// messageSender interface for sending messages (SSE or WebSocket).
type messageSender interface {
	Send(*EventFrame) error
}

// sseSender sends messages via SSE.
type sseSender struct {
	writer http.ResponseWriter
}

func (s *sseSender) Send(frame *EventFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_, err = s.writer.Write([]byte("data: " + string(payload) + "\n\n"))
	if err != nil {
		return err
	}
	s.writer.(http.Flusher).Flush()
	return nil
}

// wsSender sends messages via WebSocket.
type wsSender struct {
	conn          *websocket.Conn
	done          <-chan struct{}
	logger        zerolog.Logger
	writeDeadline time.Duration
}

func (s *wsSender) Send(frame *EventFrame) error {
	select {
	case <-s.done:
		s.logger.Debug().Str("event_type", frame.Type).Msg("Connection already closed, skipping send")
		return io.EOF
	default:
	}

	deadline := time.Now().Add(s.writeDeadline)
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to set write deadline")
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", frame.Type).Msg("Failed to marshal event")
		return err
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.logger.Warn().
				Err(err).
				Str("event_type", frame.Type).
				Msg("WebSocket WriteMessage failed: connection closed")
		} else {
			s.logger.Warn().
				Err(err).
				Str("event_type", frame.Type).
				Msg("WebSocket WriteMessage failed")
		}
		return err
	}

	return nil
}
