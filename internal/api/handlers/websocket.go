package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anstrom/tellix/internal/api/middleware"
	"github.com/anstrom/tellix/internal/logging"
	"github.com/anstrom/tellix/internal/protocol"
)

const (
	writeWait       = 10 * time.Second                                   // Time allowed to write a message to the peer
	pongWait        = 60 * time.Second                                   // Time to read next pong message from peer
	pingPeriodRatio = 0.9                                                // Ratio of pongWait for pingPeriod
	pingPeriod      = time.Duration(float64(pongWait) * pingPeriodRatio) // Send pings to peer (must be < pongWait)
)

// WebSocketHandler serves the line protocol over WebSocket: every text
// message is one request and gets exactly one response message.
type WebSocketHandler struct {
	dispatcher *protocol.Dispatcher
	logger     *logging.Logger
	upgrader   websocket.Upgrader

	mutex   sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewWebSocketHandler creates a new WebSocket handler. An empty origins list
// or one containing "*" accepts every origin.
func NewWebSocketHandler(dispatcher *protocol.Dispatcher, origins []string, logger *logging.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}
	allowAll := len(origins) == 0 || allowed["*"]

	return &WebSocketHandler{
		dispatcher: dispatcher,
		logger:     logger.WithFields("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || allowed[origin]
			},
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Serve upgrades the connection and answers requests until the peer leaves.
// @Summary Protocol over WebSocket
// @Description Each text message is a protocol request, each reply a protocol response
// @Tags Probe
// @Security ApiKeyAuth
// @Success 101 {string} string "Switching Protocols"
// @Router /ws [get]
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", "request_id", requestID, "error", err)
		return
	}

	h.register(conn)
	h.logger.Info("WebSocket client connected", "request_id", requestID, "remote_addr", r.RemoteAddr)

	var writeMu sync.Mutex
	done := make(chan struct{})
	defer func() {
		close(done)
		h.unregister(conn)
		if err := conn.Close(); err != nil {
			h.logger.Debug("Error closing WebSocket connection", "request_id", requestID, "error", err)
		}
		h.logger.Info("WebSocket client disconnected", "request_id", requestID)
	}()

	go h.pingPump(conn, &writeMu, done, requestID)
	h.readPump(r, conn, &writeMu, requestID)
}

// readPump answers requests one at a time, in arrival order.
func (h *WebSocketHandler) readPump(r *http.Request, conn *websocket.Conn, writeMu *sync.Mutex, requestID string) {
	conn.SetReadLimit(protocol.MaxLineSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Error("Failed to set read deadline", "request_id", requestID, "error", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket unexpected close", "request_id", requestID, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		// A probe may outlast the pong window
		if err := conn.SetReadDeadline(time.Time{}); err != nil {
			return
		}
		resp := h.dispatcher.Handle(r.Context(), message)
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}

		writeMu.Lock()
		err = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err == nil {
			err = conn.WriteJSON(resp)
		}
		writeMu.Unlock()
		if err != nil {
			h.logger.Debug("Write failed, closing connection", "request_id", requestID, "error", err)
			return
		}
	}
}

// pingPump keeps the connection alive while requests are in flight.
func (h *WebSocketHandler) pingPump(conn *websocket.Conn, writeMu *sync.Mutex, done <-chan struct{}, requestID string) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			writeMu.Unlock()
			if err != nil {
				h.logger.Debug("Ping failed", "request_id", requestID, "error", err)
				return
			}
		}
	}
}

func (h *WebSocketHandler) register(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[conn] = struct{}{}
}

func (h *WebSocketHandler) unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.clients, conn)
}

// ConnectedClients returns the number of open connections.
func (h *WebSocketHandler) ConnectedClients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *WebSocketHandler) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		if err := conn.Close(); err != nil {
			h.logger.Debug("Error closing client connection", "error", err)
		}
	}
	h.clients = make(map[*websocket.Conn]struct{})

	h.logger.Info("WebSocket handler closed")
	return nil
}
