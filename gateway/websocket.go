package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hupe1980/collabmesh/core"
)

// client is one websocket connection. Bus deliveries are queued on send and
// written by a dedicated goroutine, so a slow client never stalls fan-out.
type client struct {
	id   string
	conn *websocket.Conn
	send chan core.Event
	done chan struct{}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	c := &client{
		id:   "gateway-" + core.NewID(),
		conn: ws,
		send: make(chan core.Event, s.opts.SendBuffer),
		done: make(chan struct{}),
	}
	s.logger.Info("Client connected", "client_id", c.id, "remote_addr", r.RemoteAddr)

	unsubscribe := s.backend.Subscribe(func(ev core.Event) {
		select {
		case c.send <- ev:
		case <-c.done:
		default:
			s.logger.Warn("Client too slow, event dropped", "client_id", c.id, "event_type", ev.Type)
		}
	})
	defer unsubscribe()

	go s.writePump(c)
	s.readPump(c)
	close(c.done)

	s.logger.Info("Client disconnected", "client_id", c.id)
}

func (s *Server) readPump(c *client) {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		ev, err := core.UnmarshalEvent(msg)
		if err != nil {
			s.logger.Warn("Invalid inbound event", "client_id", c.id, "error", err)
			continue
		}
		// inbound events never carry a local replica id
		ev.Origin = c.id
		s.backend.PublishRemote(ev)
	}
}

func (s *Server) writePump(c *client) {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			data, err := core.MarshalEvent(ev)
			if err != nil {
				s.logger.Warn("Event encoding failed", "event_type", ev.Type, "error", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("Websocket write failed", "client_id", c.id, "error", err)
				_ = c.conn.Close()
				return
			}
		}
	}
}
