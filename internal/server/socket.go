package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/user/gophersearch/internal/runtime"
	"github.com/user/gophersearch/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	inboundBuffer  = 16

	internalErrorNotice = "An internal server error occurred. Please try again."
)

type historyFrame struct {
	Type     string                   `json:"type"`
	Messages []runtime.HistoryMessage `json:"messages"`
}

type newSessionFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

type thinkFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type typeFrame struct {
	Type string `json:"type"`
}

// encodeFrame renders an event as the text frame the chat client expects.
// Content chunks and error notices go out as raw text; everything else is
// a JSON object tagged with "type".
func encodeFrame(ev runtime.Event) ([]byte, error) {
	switch ev.Type {
	case runtime.EventChunk, runtime.EventError:
		return []byte(ev.Text), nil
	case runtime.EventHistory:
		msgs := ev.History
		if msgs == nil {
			msgs = []runtime.HistoryMessage{}
		}
		return json.Marshal(historyFrame{Type: string(ev.Type), Messages: msgs})
	case runtime.EventNewSession:
		return json.Marshal(newSessionFrame{Type: string(ev.Type), ConversationID: string(ev.SessionID), Message: ev.Text})
	case runtime.EventThink:
		return json.Marshal(thinkFrame{Type: string(ev.Type), Message: ev.Text})
	case runtime.EventStreamEnd:
		return json.Marshal(typeFrame{Type: string(ev.Type)})
	}
	return nil, fmt.Errorf("unknown event type %q", ev.Type)
}

// socketEmitter writes a session's events to its websocket. The session
// loop is its only caller.
type socketEmitter struct {
	ws *websocket.Conn
}

func (e *socketEmitter) Emit(_ context.Context, ev runtime.Event) error {
	data, err := encodeFrame(ev)
	if err != nil {
		return err
	}
	return e.write(data)
}

func (e *socketEmitter) write(data []byte) error {
	if err := e.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := e.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("websocket write failed", "error", err)
		return err
	}
	return nil
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	if s.gw == nil {
		http.Error(w, "chat not configured", http.StatusServiceUnavailable)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	connID := uuid.NewString()
	id := types.SessionID(strings.TrimSpace(r.URL.Query().Get("conversation_id")))
	slog.Info("chat connection opened", "conn_id", connID, "session_id", string(id))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan string, inboundBuffer)
	go readLoop(ctx, cancel, ws, inbound)
	go pingLoop(ctx, ws)

	emit := &socketEmitter{ws: ws}
	if err := s.gw.Serve(ctx, connID, id, emit, inbound); err != nil && ctx.Err() == nil {
		slog.Error("chat session failed", "conn_id", connID, "error", err)
		_ = emit.write([]byte(internalErrorNotice))
	}

	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	slog.Info("chat connection closed", "conn_id", connID)
}

// readLoop forwards text frames to inbound until the client goes away, then
// cancels the connection context so an in-flight turn is abandoned.
func readLoop(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, inbound chan<- string) {
	defer close(inbound)
	defer cancel()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.Warn("websocket read failed", "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		if mt != websocket.TextMessage {
			continue
		}
		select {
		case inbound <- string(data):
		case <-ctx.Done():
			return
		}
	}
}

func pingLoop(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
