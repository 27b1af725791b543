package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/okian/raceledger/pkg/logger"
)

// WebsocketHandler upgrades GET /ws and hands the connection to the hub.
type WebsocketHandler struct {
	notifier Notifier
	logger   logger.Logger
	upgrader websocket.Upgrader
	origins  map[string]struct{}
}

// NewWebsocketHandler creates a new websocket handler. Browsers may connect
// from the service's own host or from one of origins ("scheme://host[:port]").
func NewWebsocketHandler(n Notifier, l logger.Logger, origins []string) *WebsocketHandler {
	h := &WebsocketHandler{notifier: n, logger: l, origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		h.origins[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 2048,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts non-browser clients (no Origin header), same-host
// pages and the configured origins.
func (h *WebsocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	_, ok := h.origins[strings.ToLower(u.Scheme+"://"+u.Host)]
	return ok
}

// HandleWS handles GET /ws.
func (h *WebsocketHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || h.notifier == nil {
		http.NotFound(w, r)
		return
	}
	playerID, err := playerFrom(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	if err := h.notifier.Serve(r.Context(), playerID, conn); err != nil {
		h.logger.Debug(r.Context(), "websocket closed", logger.String("player_id", playerID), logger.Error(err))
	}
}
