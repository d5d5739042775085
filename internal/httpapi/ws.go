// ABOUTME: WebSocket endpoint for live event delivery and inbound chat frames
// ABOUTME: Bridges a client connection to the hub with presence bookkeeping

package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/auth"
	"github.com/Alexxxx0910/work-flow-connect-62/internal/chat"
)

const (
	// writeWait bounds how long a single frame write may take.
	writeWait = 10 * time.Second

	// pongWait is how long we wait for a pong before dropping the connection.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Token auth already gates this endpoint; browser clients connect from
	// arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundFrame is a client-to-server WebSocket message.
type inboundFrame struct {
	Type        string `json:"type"`
	ChatID      string `json:"chatId"`
	Content     string `json:"content"`
	ClientMsgID string `json:"clientMsgId"`
}

// errorFrame is sent back when an inbound frame is rejected.
type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, sessionID := s.hub.Subscribe(ctx, userID)

	logger := s.logger.With("user_id", userID, "session_id", sessionID)
	logger.Info("websocket connected")

	if err := s.store.SetUserPresence(ctx, userID, true, time.Now().UTC()); err != nil {
		logger.Warn("failed to mark user online", "error", err)
	}

	defer func() {
		s.hub.Unsubscribe(userID, sessionID)
		conn.Close()

		// Only the last session of a user flips them offline.
		if !s.hub.Online(userID) {
			if err := s.store.SetUserPresence(context.Background(), userID, false, time.Now().UTC()); err != nil {
				logger.Warn("failed to mark user offline", "error", err)
			}
		}
		logger.Info("websocket disconnected")
	}()

	// Outbound frames from the read loop, merged with hub events so the
	// connection has a single writer.
	out := make(chan any, 16)

	go s.writePump(conn, events, out)

	s.readPump(ctx, conn, userID, out, logger)
}

// readPump consumes client frames until the connection drops.
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, userID string, out chan<- any, logger *slog.Logger) {
	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", "error", err)
			}
			return
		}

		switch frame.Type {
		case "send_message":
			// A reconnecting client may resend the same frame; the resend
			// cache keeps it from producing a second message. The id is
			// recorded only after the send commits, so a failed send stays
			// retryable under the same client id.
			if s.resends.Check(userID, frame.ClientMsgID) {
				continue
			}
			if _, err := s.service.SendMessage(ctx, userID, frame.ChatID, frame.Content); err != nil {
				s.sendFrameError(out, err)
				continue
			}
			s.resends.Mark(userID, frame.ClientMsgID)

		case "mark_read":
			if err := s.service.MarkRead(ctx, userID, frame.ChatID); err != nil {
				s.sendFrameError(out, err)
			}

		default:
			queueFrame(out, errorFrame{Type: "error", Message: "unknown frame type"})
		}
	}
}

// writePump is the single writer for the connection. It drains hub events
// and read-loop responses, and keeps the connection alive with pings.
func (s *Server) writePump(conn *websocket.Conn, events <-chan chat.Event, out <-chan any) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}

		case frame := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendFrameError queues an error frame describing a rejected inbound frame.
func (s *Server) sendFrameError(out chan<- any, err error) {
	msg := "internal server error"
	var chatErr *chat.Error
	if errors.As(err, &chatErr) {
		msg = chatErr.Message
	}
	queueFrame(out, errorFrame{Type: "error", Message: msg})
}

// queueFrame enqueues an outbound frame without ever blocking the read loop.
func queueFrame(out chan<- any, frame any) {
	select {
	case out <- frame:
	default:
	}
}
