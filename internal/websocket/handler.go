package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"regliq/internal/config"
	"regliq/internal/infrastructure"
)

// Handler upgrades HTTP requests and attaches the connection to a hub
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	cfg      config.WebSocketConfig
	logger   *slog.Logger
}

// NewHandler creates the /ws endpoint. An empty allowedOrigins accepts same-host requests only.
func NewHandler(hub *Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		cfg:    cfg,
		logger: logger,
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := NewClient(h.hub, NewConnection(conn), infrastructure.GetTraceID(r.Context()), h.cfg.PingPeriod, h.cfg.PongWait)
	if !client.Serve() {
		h.logger.WarnContext(r.Context(), "websocket hub is stopped, connection closed")
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil // gorilla default: same host only
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err != nil || u.Host == "" {
			return false
		}
		return set[strings.TrimRight(origin, "/")]
	}
}
