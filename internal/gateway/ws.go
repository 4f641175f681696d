package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) ginWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	connID := fmt.Sprintf("conn_%d", time.Now().UnixNano())
	conn := &Conn{
		ID:          connID,
		WS:          ws,
		ConnectedAt: time.Now(),
	}

	// First message must be a connect request
	frame, err := ReadFrame(ws)
	if err != nil {
		slog.Warn("failed to read connect frame", "error", err)
		return
	}
	if frame.Method != "connect" {
		conn.Send(ResErr(frame.ID, "HANDSHAKE_REQUIRED", "first message must be a connect request"))
		return
	}

	var connectParams ConnectParams
	if err := json.Unmarshal(frame.Params, &connectParams); err != nil {
		conn.Send(ResErr(frame.ID, "INVALID_PARAMS", "invalid connect params"))
		return
	}
	if !s.authenticate(connectParams.Token) {
		conn.Send(ResErr(frame.ID, "AUTH_FAILED", "invalid token"))
		return
	}

	s.Conns.Add(conn)
	defer s.Conns.Remove(connID)

	slog.Info("connection established", "id", connID)

	conn.Send(ResOK(frame.ID, map[string]any{
		"connId":   connID,
		"protocol": 1,
	}))

	// A socket close cancels any turn still running for this connection.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	for {
		frame, err := ReadFrame(ws)
		if err != nil {
			slog.Debug("connection closed", "id", connID, "error", err)
			return
		}

		if frame.Type != "req" {
			continue
		}
		if frame.Method != "chat.send" {
			conn.Send(ResErr(frame.ID, "UNKNOWN_METHOD", "use HTTP /api for management; only chat.send is supported over WebSocket"))
			continue
		}

		var params ChatSendParams
		if err := json.Unmarshal(frame.Params, &params); err != nil || params.Text == "" {
			conn.Send(ResErr(frame.ID, "INVALID_PARAMS", "text required"))
			continue
		}

		go s.runWSTurn(ctx, conn, frame.ID, params)
	}
}

// runWSTurn executes one turn and pushes its events to the socket. The
// acknowledging response carries the resolved session ID so the client can
// correlate the event stream that follows.
func (s *Server) runWSTurn(ctx context.Context, conn *Conn, reqID string, params ChatSendParams) {
	sessionID, events, err := s.startTurn(ctx, params.SessionID, params.Text)
	if err != nil {
		conn.Send(ResErr(reqID, "GENERATION_FAILED", err.Error()))
		return
	}
	conn.Send(ResOK(reqID, map[string]any{"sessionId": sessionID}))

	for ev := range events {
		payload := map[string]any{"sessionId": sessionID, "event": ev}
		if err := conn.SendEvent("chat."+ev.Type, payload); err != nil {
			slog.Warn("event push failed", "conn", conn.ID, "error", err)
			return
		}
	}
}
