package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/tournament-ops/brackets"
	"github.com/Dosada05/tournament-ops/services"
)

type WebSocketHandler struct {
	hub               *brackets.Hub
	tournamentService *services.TournamentService
	upgrader          websocket.Upgrader
	logger            *slog.Logger
}

// NewWebSocketHandler accepts connections from allowedOrigins; "*" or an empty list allows any.
func NewWebSocketHandler(hub *brackets.Hub, ts *services.TournamentService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		hub:               hub,
		tournamentService: ts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// ServeWs handles GET /ws. The client receives the current overview right away and every
// later update of the tournament room.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("remote_addr", r.RemoteAddr), slog.Any("error", err))
		return
	}

	roomID := h.tournamentService.RoomID()
	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: roomID,
	}

	initial, err := json.Marshal(brackets.WebSocketMessage{
		Type:    brackets.MessageOverview,
		Payload: h.tournamentService.Overview(),
		RoomID:  roomID,
	})
	if err == nil {
		client.Send <- initial
	} else {
		h.logger.Error("failed to encode initial overview", slog.Any("error", err))
	}

	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
