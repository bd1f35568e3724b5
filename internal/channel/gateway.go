package channel

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"call-analytics-service/internal/observability/logging"
	"call-analytics-service/internal/observability/metrics"
)

// GatewayConfig holds websocket gateway settings.
type GatewayConfig struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// DefaultGatewayConfig returns sensible gateway defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		SendBuffer:   64,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway is the in-process push channel manager. It upgrades HTTP requests
// to websockets, issues opaque connection ids, emits CONNECT/DISCONNECT
// events, and implements Channel by routing sends to per-connection write
// pumps. The buffered send queue preserves per-connection delivery order.
type Gateway struct {
	cfg     GatewayConfig
	metrics *metrics.Metrics

	mu      sync.RWMutex
	conns   map[string]*conn
	handler EventHandler
}

type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewGateway creates a websocket gateway.
func NewGateway(cfg GatewayConfig) *Gateway {
	return &Gateway{
		cfg:     cfg,
		metrics: metrics.DefaultMetrics,
		conns:   make(map[string]*conn),
	}
}

// SetEventHandler registers the receiver of CONNECT/DISCONNECT signals. Must
// be called before the gateway starts serving connections.
func (g *Gateway) SetEventHandler(h EventHandler) {
	g.mu.Lock()
	g.handler = h
	g.mu.Unlock()
}

// ServeHTTP upgrades the request and runs the connection until the peer goes
// away.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &conn{
		id:     uuid.NewString(),
		ws:     ws,
		send:   make(chan []byte, g.cfg.SendBuffer),
		closed: make(chan struct{}),
	}

	g.mu.Lock()
	g.conns[c.id] = c
	g.mu.Unlock()

	g.metrics.ConnectsTotal.Inc()
	g.metrics.ConnectionsActive.Inc()
	clog := logging.WithConnection(c.id)
	clog.Info().Msg("push connection opened")

	g.emit(r.Context(), Event{Type: EventConnect, ConnectionID: c.id})

	go g.writePump(c)
	g.readPump(c)

	g.drop(c)
}

// Send implements Channel. Unknown or closed connections report ErrGone; a
// full send queue is a transient failure.
func (g *Gateway) Send(ctx context.Context, connectionID string, data []byte) error {
	g.mu.RLock()
	c, ok := g.conns[connectionID]
	g.mu.RUnlock()
	if !ok {
		return fmt.Errorf("connection %s: %w", connectionID, ErrGone)
	}

	select {
	case c.send <- data:
		return nil
	case <-c.closed:
		return fmt.Errorf("connection %s: %w", connectionID, ErrGone)
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("connection %s: send queue full", connectionID)
	}
}

// Close tears down all live connections.
func (g *Gateway) Close() {
	g.mu.Lock()
	conns := make([]*conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

// drop removes a connection from the local table and emits DISCONNECT.
func (g *Gateway) drop(c *conn) {
	c.close()

	g.mu.Lock()
	_, present := g.conns[c.id]
	delete(g.conns, c.id)
	g.mu.Unlock()
	if !present {
		return
	}

	g.metrics.DisconnectsTotal.Inc()
	g.metrics.ConnectionsActive.Dec()
	clog := logging.WithConnection(c.id)
	clog.Info().Msg("push connection closed")

	g.emit(context.Background(), Event{Type: EventDisconnect, ConnectionID: c.id})
}

func (g *Gateway) emit(ctx context.Context, ev Event) {
	g.mu.RLock()
	h := g.handler
	g.mu.RUnlock()
	if h == nil {
		return
	}
	if err := h(ctx, ev); err != nil {
		log.Error().Err(err).
			Str("eventType", string(ev.Type)).
			Str("connectionId", ev.ConnectionID).
			Msg("channel event handler failed")
	}
}

func (g *Gateway) writePump(c *conn) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// readPump discards inbound frames; the push channel is one-way. It returns
// when the peer closes or the socket dies, which is the disconnect signal.
func (g *Gateway) readPump(c *conn) {
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.ws.Close()
	})
}
