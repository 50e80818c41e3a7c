package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

type outgoingFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// handleWebSocket answers {sessionId, message} frames one at a time on a single connection.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxBodyBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go pingLoop(ctx, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var payload chatRequest
		if err := json.Unmarshal(raw, &payload); err != nil {
			h.send(conn, outgoingFrame{Type: "error", Error: msgInvalidBody})
			continue
		}

		sessionID, message := payload.fields()
		reply, err := h.chatSvc.Reply(ctx, sessionID, message)
		if err != nil {
			status, text, details := h.describeError(err)
			if status >= http.StatusInternalServerError {
				log.Printf("[ws] reply failed session=%s: %v", sessionID, err)
			}
			h.send(conn, outgoingFrame{Type: "error", SessionID: sessionID, Error: text, Details: details})
			continue
		}

		h.send(conn, outgoingFrame{Type: "reply", SessionID: sessionID, Response: reply})
	}
}

func (h *Handler) send(conn *websocket.Conn, frame outgoingFrame) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("[ws] write failed: %v", err)
	}
}

// pingLoop keeps idle connections alive. WriteControl may run alongside WriteJSON.
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
