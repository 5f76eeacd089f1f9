package webapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Read-only data, any origin may subscribe
	},
}

// Hub keeps the connected WebSocket clients for broadcasting live readings.
type Hub struct {
	clientsMutex sync.RWMutex
	clients      map[*websocket.Conn]*client

	writeTimeout time.Duration
	logger       logrus.FieldLogger
}

type client struct {
	conn *websocket.Conn
	// gorilla connections allow one concurrent writer.
	writeMutex sync.Mutex
}

func NewHub(writeTimeout time.Duration, logger logrus.FieldLogger) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Hub{
		clients:      make(map[*websocket.Conn]*client),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Broadcast sends reading to every client. A client that does not accept the
// message within the write timeout is dropped.
func (h *Hub) Broadcast(reading types.Reading) {
	message, err := json.Marshal(reading)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode reading")
		return
	}

	h.clientsMutex.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMutex.RUnlock()

	for _, c := range clients {
		if err := h.write(c, message); err != nil {
			h.logger.WithError(err).Debug("Dropping WebSocket client")
			h.Remove(c.conn)
		}
	}
}

func (h *Hub) write(c *client, message []byte) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{conn: conn}
	h.clientsMutex.Lock()
	h.clients[conn] = c
	h.clientsMutex.Unlock()
	return c
}

func (h *Hub) Remove(conn *websocket.Conn) {
	h.clientsMutex.Lock()
	delete(h.clients, conn)
	h.clientsMutex.Unlock()
	conn.Close()
}

func (h *Hub) Len() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade error")
		return
	}

	// Registered first so no broadcast is missed, the client write lock keeps
	// the current reading ahead of them.
	c := s.hub.add(conn)
	c.writeMutex.Lock()
	ctx, cancel := s.guardContext(r)
	reading, ok, err := s.meter.Reading.Get(ctx)
	cancel()
	if err == nil && ok {
		if message, err := json.Marshal(reading); err == nil {
			conn.SetWriteDeadline(time.Now().Add(s.hub.writeTimeout))
			conn.WriteMessage(websocket.TextMessage, message)
		}
	}
	c.writeMutex.Unlock()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.hub.Remove(conn)
			return
		}
	}
}
