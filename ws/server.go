package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Server accepts bridge connections, dispatches each request to the router
// in its own goroutine and registers the connection with the hub for
// change broadcasts.
type Server struct {
	router   *Router
	hub      *WebSocketHub
	upgrader websocket.Upgrader
	log      logrus.FieldLogger

	// CommandTimeout bounds each dispatched command. Zero means no bound.
	CommandTimeout time.Duration
}

func NewServer(router *Router, hub *WebSocketHub, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		router: router,
		hub:    hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	p := &peer{conn: conn}
	s.hub.AddClient(p)
	defer s.hub.RemoveClient(p)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Debug("Error reading websocket request")
			}
			return
		}
		go s.handle(ctx, p, req)
	}
}

func (s *Server) handle(ctx context.Context, p *peer, req Request) {
	logger := s.log.WithFields(logrus.Fields{"id": req.ID, "cmd": req.Cmd})

	resp := WebSocketEvent{Type: MESSAGE_RESPONSE, ID: req.ID}

	if s.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.CommandTimeout)
		defer cancel()
	}

	result, err := s.router.Dispatch(ctx, req.Cmd, req.Args)
	if err == nil {
		resp.Result, err = json.Marshal(result)
	}
	if err != nil {
		logger.WithError(err).Warn("Command failed")
		resp.Error = err.Error()
		resp.Result = nil
	}

	if err := p.WriteJSON(resp); err != nil {
		logger.WithError(err).Debug("Error writing websocket response")
	}
}
