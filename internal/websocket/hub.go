package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"regliq/internal/infrastructure"
)

// Message types
const (
	TypeConnection       = "connection"
	TypeSubmissionStatus = "submission:status"
	TypeSubmissionResult = "submission:result"
)

// broadcastQueue bounds messages waiting for the hub loop
const broadcastQueue = 256

// Message is the envelope of every frame sent to clients
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"trace_id,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	logger  *slog.Logger
	metrics *infrastructure.LiquidityMetrics

	totalConnections int64
	messagesSent     int64
	messagesDropped  int64
}

// NewHub creates a new Hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *infrastructure.LiquidityMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
	}
}

// Start runs the hub loop in a goroutine
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop ends the hub loop and disconnects every client
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	ctx := context.Background()

	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.totalConnections++
			count := len(h.clients)
			h.mu.Unlock()

			h.metrics.RecordWebSocketClients(ctx, 1)
			h.logger.InfoContext(infrastructure.WithTraceID(ctx, client.traceID), "client registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count))

			if data, err := encode(TypeConnection, map[string]string{
				"status":    "connected",
				"client_id": client.id,
			}, client.traceID); err == nil {
				select {
				case client.send <- data:
				default:
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.mu.Unlock()

				h.metrics.RecordWebSocketClients(ctx, -1)
				h.logger.InfoContext(infrastructure.WithTraceID(ctx, client.traceID), "client unregistered",
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.messagesSent++
				default:
					// slow consumer
					close(client.send)
					delete(h.clients, client)
					h.metrics.RecordWebSocketClients(ctx, -1)
					h.logger.Warn("client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a typed message to every connected client. It never blocks:
// when the hub is stopped or its queue is full the message is dropped.
func (h *Hub) Broadcast(ctx context.Context, messageType string, data any) {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return
	}

	payload, err := encode(messageType, data, infrastructure.GetTraceID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "error marshaling message",
			slog.String("message_type", messageType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.mu.Lock()
		h.messagesDropped++
		h.mu.Unlock()
		h.logger.WarnContext(ctx, "broadcast queue full, dropping message",
			slog.String("message_type", messageType))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns counters for the health endpoints
func (h *Hub) Stats() map[string]int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]int64{
		"active_clients":    int64(len(h.clients)),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"messages_dropped":  h.messagesDropped,
	}
}

// Running reports whether the hub loop is active
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

func encode(messageType string, data any, traceID string) ([]byte, error) {
	return json.Marshal(Message{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
	})
}
