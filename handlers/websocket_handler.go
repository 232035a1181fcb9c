package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/orbisplace/orbis-api/realtime"
	"github.com/orbisplace/orbis-api/services"
)

type WebSocketHandler struct {
	responder
	hub         *realtime.Hub
	teamService services.TeamService
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler takes the allowed origins; "*" allows any.
func NewWebSocketHandler(hub *realtime.Hub, teamService services.TeamService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		responder:   newResponder(logger),
		hub:         hub,
		teamService: teamService,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// not a browser
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// ServeTeamEvents subscribes the client to /ws/teams/{teamID} events.
func (h *WebSocketHandler) ServeTeamEvents(w http.ResponseWriter, r *http.Request) {
	teamID, ok := h.urlParam(w, r, "teamID")
	if !ok {
		return
	}

	if _, err := h.teamService.GetByID(r.Context(), teamID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("team_id", teamID),
			slog.Any("error", err))
		return
	}

	room := realtime.TeamRoom(teamID)
	client := realtime.NewClient(h.hub, conn, room)
	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	h.logger.DebugContext(r.Context(), "websocket client registered", slog.String("room", room))
}
