package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
	wsEndTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

type wsMessage struct {
	Message string `json:"message"`
}

type wsReply struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply,omitempty"`
	Error     string `json:"error,omitempty"`
}

// wsHandler runs a chat over one websocket. The session is taken from the
// session_id query parameter or created for the connection, and ends when
// the connection closes.
func (s *Server) wsHandler(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.l.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go s.wsPingLoop(ctx, conn)

	s.l.Info("WebSocket connected", zap.String("session_id", sessionID))
	defer s.endSession(c.Request.Context(), sessionID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.l.Warn("WebSocket read failed", zap.String("session_id", sessionID), zap.Error(err))
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			msg.Message = string(raw)
		}

		out := wsReply{SessionID: sessionID}
		reply, err := s.assistant.SubmitMessage(ctx, sessionID, strings.TrimSpace(msg.Message))
		if err != nil {
			s.l.Error("Could not handle chat turn", zap.String("session_id", sessionID), zap.Error(err))
			out.Error = http.StatusText(http.StatusInternalServerError)
		} else {
			out.Reply = reply
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(out); err != nil {
			return
		}
	}
}

func (s *Server) endSession(ctx context.Context, sessionID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), wsEndTimeout)
	defer cancel()
	if err := s.assistant.EndSession(ctx, sessionID); err != nil {
		s.l.Warn("Could not end session", zap.String("session_id", sessionID), zap.Error(err))
	}
	s.l.Info("WebSocket disconnected", zap.String("session_id", sessionID))
}

func (s *Server) wsPingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
