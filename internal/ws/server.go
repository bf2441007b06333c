package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"token-pulse/internal/observability"
)

const (
	writeTimeout   = 10 * time.Second
	readLimitBytes = 4 << 10
	sendBufferSize = 64
)

// clientMessage is the inbound frame shape.
type clientMessage struct {
	Event string          `json:"event"`
	Data  SubscribeParams `json:"data"`
}

// serverMessage is the outbound frame shape.
type serverMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Server upgrades HTTP requests into websocket connections and bridges them
// to the hub.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
	clients  atomic.Int64
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Hub    *Hub
	Logger *zap.Logger
}

// NewServer creates a websocket server over the given hub.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		hub: opts.Hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// cross-origin browser clients are expected
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.Named("ws"),
	}
}

// ServeHTTP handles the /ws endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &conn{
		id:     uuid.NewString(),
		sock:   sock,
		send:   make(chan []byte, sendBufferSize),
		logger: s.logger,
	}
	observability.SetConnectedClients(int(s.clients.Add(1)))
	s.logger.Debug("client connected", zap.String("client", c.id))

	go c.writeLoop()
	s.readLoop(r.Context(), c)

	s.hub.Unsubscribe(c)
	c.close()
	observability.SetConnectedClients(int(s.clients.Add(-1)))
	s.logger.Debug("client disconnected", zap.String("client", c.id))
}

// readLoop consumes inbound frames until the connection fails or closes.
func (s *Server) readLoop(ctx context.Context, c *conn) {
	c.sock.SetReadLimit(readLimitBytes)

	for {
		_, payload, err := c.sock.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Debug("malformed client frame",
				zap.String("client", c.id), zap.Error(err))
			continue
		}

		switch msg.Event {
		case "subscribe":
			s.hub.Subscribe(ctx, c, msg.Data)
		case "unsubscribe":
			s.hub.Unsubscribe(c)
		case "ping":
			c.Send("pong", nil)
		default:
			s.logger.Debug("unknown client event",
				zap.String("client", c.id), zap.String("event", msg.Event))
		}
	}
}

// conn is one transport connection: a socket plus a buffered writer goroutine.
type conn struct {
	id     string
	sock   *websocket.Conn
	send   chan []byte
	logger *zap.Logger
	once   sync.Once
}

var _ Subscriber = (*conn)(nil)

// ID returns the connection id.
func (c *conn) ID() string { return c.id }

// Send queues an event frame for delivery. When the buffer is full the frame
// is dropped so one slow client cannot stall the hub.
func (c *conn) Send(event string, data any) {
	payload, err := json.Marshal(serverMessage{Event: event, Data: data})
	if err != nil {
		c.logger.Error("serialize server frame", zap.Error(err))
		return
	}

	defer func() {
		// send on closed channel when racing close; the client is gone anyway
		recover()
	}()

	select {
	case c.send <- payload:
	default:
		c.logger.Debug("slow client, frame dropped",
			zap.String("client", c.id), zap.String("event", event))
	}
}

func (c *conn) writeLoop() {
	for payload := range c.send {
		c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.sock.Close()
			// drain until close so Send never blocks
			for range c.send {
			}
			return
		}
	}
	c.sock.Close()
}

func (c *conn) close() {
	c.once.Do(func() { close(c.send) })
}
