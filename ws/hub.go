package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/usenocturne/btmanager/bluetooth"
)

// peer serializes writes to one connection; gorilla allows a single
// concurrent writer.
type peer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *peer) WriteJSON(v interface{}) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteJSON(v)
}

type WebSocketHub struct {
	clients map[*peer]bool
	mu      sync.Mutex
	log     logrus.FieldLogger
}

func NewWebSocketHub(logger logrus.FieldLogger) *WebSocketHub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WebSocketHub{
		clients: make(map[*peer]bool),
		log:     logger,
	}
}

func (h *WebSocketHub) AddClient(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[p] = true
	h.log.Infof("WebSocket client connected. Total clients: %d", len(h.clients))
}

func (h *WebSocketHub) RemoveClient(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[p]; ok {
		delete(h.clients, p)
		p.conn.Close()
		h.log.Infof("WebSocket client disconnected. Total clients: %d", len(h.clients))
	}
}

func (h *WebSocketHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends a change to every connected client, dropping clients whose
// write fails.
func (h *WebSocketHub) Broadcast(change bluetooth.BluetoothChange) {
	payload, err := json.Marshal(change)
	if err != nil {
		h.log.WithError(err).Error("Error encoding bluetooth change")
		return
	}
	event := WebSocketEvent{
		Type:    MESSAGE_CHANGE,
		Payload: payload,
	}

	h.mu.Lock()
	clients := make([]*peer, 0, len(h.clients))
	for p := range h.clients {
		clients = append(clients, p)
	}
	h.mu.Unlock()

	h.log.WithField("change", change.ChangeType.String()).Debugf("Broadcasting to %d clients", len(clients))

	for _, p := range clients {
		if err := p.WriteJSON(event); err != nil {
			h.log.WithError(err).Warn("Client disconnected")
			h.RemoveClient(p)
		}
	}
}
