package clientws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	ws "nhooyr.io/websocket"

	"rentvoice/agent/internal/auth"
	"rentvoice/agent/internal/config"
)

// Message is the frame exchanged with the browser over the voice channel.
type Message struct {
	Type          string         `json:"type"`
	TsMs          int64          `json:"ts_ms"`
	NegotiationID string         `json:"negotiation_id"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// Sessions is the slice of the negotiation store the channel needs.
type Sessions interface {
	Exists(negotiationID string) bool
	AppendEvent(negotiationID, typ string, payload map[string]any)
}

// Server accepts browser connections and forwards their frames to the
// orchestrator through OnMessage.
type Server struct {
	Cfg       config.Config
	Store     Sessions
	Reg       *Registry
	Logger    *zap.Logger
	OnMessage func(ctx context.Context, negotiationID string, msg Message)
}

func NewServer(cfg config.Config, st Sessions, reg *Registry, logger *zap.Logger) *Server {
	return &Server{Cfg: cfg, Store: st, Reg: reg, Logger: logger.Named("clientws")}
}

func (s *Server) HandleClientWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	negotiationID := q.Get("negotiation_id")
	if negotiationID == "" {
		http.Error(w, "missing negotiation_id", http.StatusBadRequest)
		return
	}
	if !s.Store.Exists(negotiationID) {
		http.Error(w, "unknown negotiation", http.StatusNotFound)
		return
	}
	// Browsers cannot set headers on WebSocket upgrades, so the token may
	// arrive as a query parameter instead.
	token := q.Get("token")
	if token == "" {
		authz := r.Header.Get("Authorization")
		if strings.HasPrefix(authz, "Bearer ") {
			token = strings.TrimPrefix(authz, "Bearer ")
		}
	}
	if token == "" {
		http.Error(w, "missing channel token", http.StatusUnauthorized)
		return
	}
	if s.Cfg.Channel.TokenSecret == "" {
		http.Error(w, "channel auth not configured", http.StatusUnauthorized)
		return
	}
	if _, _, err := auth.ValidateChannelToken(s.Cfg.Channel.TokenSecret, token, negotiationID, time.Now(), s.Cfg.Channel.TokenSkewSecs); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := ws.Accept(w, r, nil)
	if err != nil {
		s.Logger.Warn("ws accept failed", zap.Error(err))
		return
	}
	replaced := s.Reg.Replace(negotiationID, c)
	if replaced {
		s.Store.AppendEvent(negotiationID, "client_replaced", nil)
	}
	s.Store.AppendEvent(negotiationID, "client_connected", nil)
	if s.OnMessage != nil {
		s.OnMessage(r.Context(), negotiationID, Message{Type: "connection_state", Payload: map[string]any{"state": "connected"}})
	}

	ctx := r.Context()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		if typ != ws.MessageText && typ != ws.MessageBinary {
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Store.AppendEvent(negotiationID, "client_msg_invalid", map[string]any{"error": err.Error()})
			continue
		}
		payload := msg.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		payload["ts_ms"] = msg.TsMs
		s.Store.AppendEvent(negotiationID, msg.Type, payload)
		if s.OnMessage != nil {
			s.OnMessage(ctx, negotiationID, msg)
		}
	}
	_ = c.Close(ws.StatusNormalClosure, "done")
	s.Reg.Remove(negotiationID)
	s.Store.AppendEvent(negotiationID, "client_disconnected", nil)
	if s.OnMessage != nil {
		s.OnMessage(context.Background(), negotiationID, Message{Type: "connection_state", Payload: map[string]any{"state": "disconnected"}})
	}
}
