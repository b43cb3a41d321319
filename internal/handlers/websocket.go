package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/interfaces"
	"github.com/ternarybob/tailor/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// wsClient is one connected frontend. An empty sessionID subscribes to
// every session's events.
type wsClient struct {
	conn      *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

// WebSocketHandler broadcasts wizard events to connected frontends so
// progress updates (stage changes, proposals, PDFs) arrive without polling.
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*wsClient]bool
	mu               sync.RWMutex
	allowedEvents    map[string]bool // empty = allow all
	serverInstanceID string
}

// broadcastTypes lists the event types the handler subscribes to
var broadcastTypes = []models.EventType{
	models.EventSessionCreated,
	models.EventStageChanged,
	models.EventFieldUpdated,
	models.EventProposalReady,
	models.EventPDFGenerated,
	models.EventSessionExpired,
	models.EventLLMCall,
	models.EventErrorOccurred,
}

func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*wsClient]bool),
		allowedEvents:    make(map[string]bool),
		serverInstanceID: uuid.New().String(),
	}

	if config != nil && len(config.AllowedEvents) > 0 {
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents[eventType] = true
		}
	}

	for _, eventType := range broadcastTypes {
		if err := eventService.Subscribe(eventType, h.onEvent); err != nil {
			logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Could not subscribe websocket broadcaster")
		}
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")
	return h
}

// HandleWebSocket upgrades the connection and keeps it open until the
// client disconnects. An optional session_id query parameter narrows the
// stream to one session.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:      conn,
		sessionID: r.URL.Query().Get("session_id"),
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().
		Str("session_filter", client.sessionID).
		Int("clients", count).
		Msg("WebSocket client connected")

	// Hello frame lets the client detect server restarts
	client.mu.Lock()
	_ = conn.WriteJSON(map[string]interface{}{
		"type":               "hello",
		"server_instance_id": h.serverInstanceID,
		"timestamp":          time.Now().UTC(),
	})
	client.mu.Unlock()

	// Reads are drained only to observe disconnects; the stream is one-way
	go func() {
		defer h.removeClient(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *WebSocketHandler) removeClient(client *wsClient) {
	h.mu.Lock()
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	client.conn.Close()
	h.logger.Debug().Int("clients", count).Msg("WebSocket client disconnected")
}

// onEvent fans one published event out to every matching client
func (h *WebSocketHandler) onEvent(ctx context.Context, event models.Event) error {
	if len(h.allowedEvents) > 0 && !h.allowedEvents[string(event.Type)] {
		return nil
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		if c.sessionID == "" || c.sessionID == event.SessionID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		err := c.conn.WriteJSON(event)
		c.mu.Unlock()
		if err != nil {
			h.removeClient(c)
		}
	}
	return nil
}

// Close disconnects every client
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		c.conn.Close()
	}
	h.clients = make(map[*wsClient]bool)
}
