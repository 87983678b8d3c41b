package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/archmesh"
	"github.com/hupe1980/archmesh/orchestrator"
)

const writeTimeout = 10 * time.Second

// wsRequest is a client frame.
type wsRequest struct {
	Type           string `json:"type"` // ask or ping
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message,omitempty"`
	Image          []byte `json:"image,omitempty"`
}

// wsMessage is a server frame: an orchestrator event, the final outcome
// (type "done"), "pong" or "error".
type wsMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	*orchestrator.Event
	Outcome *orchestrator.Outcome `json:"outcome,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("server.ws.upgrade_failed", "error", err.Error())
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.maxBody)
	if s.metrics != nil {
		s.metrics.ActiveStreams.Inc()
		defer s.metrics.ActiveStreams.Dec()
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	// The reader cancels in-flight turns as soon as the client goes away.
	requests := make(chan wsRequest)
	go func() {
		defer cancel()
		defer close(requests)
		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("server.ws.read_failed", "error", err.Error())
				}
				return
			}
			select {
			case requests <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	for req := range requests {
		switch req.Type {
		case "ping":
			if err := s.writeFrame(conn, wsMessage{Type: "pong"}); err != nil {
				return
			}
		case "ask":
			if err := s.streamTurn(ctx, conn, req); err != nil {
				return
			}
		default:
			if err := s.writeFrame(conn, wsMessage{Type: "error", Error: "unknown message type " + req.Type}); err != nil {
				return
			}
		}
	}
}

// streamTurn runs one turn and forwards its events. A returned error means
// the connection is unusable.
func (s *Server) streamTurn(ctx context.Context, conn *websocket.Conn, req wsRequest) error {
	turn, err := s.mesh.Ask(ctx, archmesh.AskRequest{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		Image:          req.Image,
	})
	if err != nil {
		return s.writeFrame(conn, wsMessage{Type: "error", Error: err.Error()})
	}

	var writeErr error
	for e := range turn.Events() {
		if writeErr != nil {
			continue
		}
		writeErr = s.writeFrame(conn, wsMessage{Type: string(e.Type), ConversationID: turn.ConversationID, Event: &e})
	}
	out, err := turn.Result()
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		return s.writeFrame(conn, wsMessage{Type: "error", ConversationID: turn.ConversationID, Error: err.Error()})
	}
	return s.writeFrame(conn, wsMessage{Type: "done", ConversationID: turn.ConversationID, Outcome: &out})
}

func (s *Server) writeFrame(conn *websocket.Conn, m wsMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(m)
}
