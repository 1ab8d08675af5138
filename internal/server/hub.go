package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tyrowin/messenger/internal/chat"
	"github.com/Tyrowin/messenger/internal/history"
	"github.com/Tyrowin/messenger/internal/logging"
	"github.com/Tyrowin/messenger/internal/metrics"
	"github.com/Tyrowin/messenger/internal/presence"
)

type inboundEvent struct {
	client *Client
	in     chat.Inbound
}

// Hub serializes every session event of every connection through a single
// goroutine, which gives all clients the same order of broadcasts.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	presence *presence.Registry
	history  *history.Buffer[chat.Message]
	router   *Router

	// Owned by the Run goroutine.
	clients   map[*Client]struct{}
	joined    map[string]*Client
	evictions []string
	lastStamp time.Time

	connections atomic.Int64

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub for cfg. A nil logger discards output and nil metrics
// are registered on a private registry.
func NewHub(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Hub {
	cfg = cfg.Sanitize()
	if logger == nil {
		logger = logging.Discard()
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		presence:   presence.New(),
		history:    history.New[chat.Message](cfg.HistoryCapacity),
		router:     NewRouter(),
		clients:    make(map[*Client]struct{}),
		joined:     make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands a new connection to the hub. It returns false once the hub
// has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister reports a transport-level disconnect. Repeated calls are harmless.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Dispatch hands a decoded event to the hub. It returns false once the hub
// has stopped.
func (h *Hub) Dispatch(c *Client, in chat.Inbound) bool {
	select {
	case h.inbound <- inboundEvent{client: c, in: in}:
		return true
	case <-h.done:
		return false
	}
}

// Users returns the presence snapshot in join order.
func (h *Hub) Users() []presence.User {
	return h.presence.List()
}

// RecentMessages returns up to limit of the newest broadcast messages.
func (h *Hub) RecentMessages(limit int) []chat.Message {
	return h.history.Recent(limit)
}

// Connections returns the number of open connections, joined or not.
func (h *Hub) Connections() int {
	return int(h.connections.Load())
}

// Config returns the sanitized configuration the hub runs with.
func (h *Hub) Config() Config {
	return h.cfg
}

// Run is the hub's event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case c := <-h.register:
			if c == nil {
				h.logger.Warn("received nil client registration; skipping")
				continue
			}
			h.addClient(c)

		case c := <-h.unregister:
			h.removeClient(c)

		case ev := <-h.inbound:
			h.handleInbound(ev.client, ev.in)
		}

		h.drainEvictions()
	}
}

func (h *Hub) addClient(c *Client) {
	c.state = StateConnecting
	h.clients[c] = struct{}{}
	n := h.connections.Add(1)
	h.metrics.Connections.Set(float64(n))
	c.logger.Info("client connected", "connections", n)

	if c.conn == nil {
		return
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.closeSend()
	h.handleLeave(c)

	n := h.connections.Add(-1)
	h.metrics.Connections.Set(float64(n))
	c.logger.Info("client disconnected", "connections", n)
}

// evict drops a joined connection whose buffer refused a frame.
func (h *Hub) evict(id string) {
	c, ok := h.joined[id]
	if !ok {
		return
	}
	c.logger.Warn("evicting slow consumer", "buffer", cap(c.send))
	c.closeSend()
	h.handleLeave(c)
}

// drainEvictions runs until no eviction is pending; leaving broadcasts can
// queue further evictions.
func (h *Hub) drainEvictions() {
	for len(h.evictions) > 0 {
		id := h.evictions[0]
		h.evictions = h.evictions[1:]
		h.evict(id)
	}
	h.evictions = nil
}

// broadcast encodes and fans a frame out to every joined connection except
// exclude.
func (h *Hub) broadcast(event string, data any, exclude string) {
	frame, err := chat.Encode(event, data)
	if err != nil {
		h.logger.Error("encode frame", "event", event, "error", err)
		return
	}
	for _, id := range h.router.Broadcast(frame, exclude) {
		h.deliveryFailed(id)
	}
}

// unicast encodes and delivers a frame to one joined connection.
func (h *Hub) unicast(id, event string, data any) error {
	frame, err := chat.Encode(event, data)
	if err != nil {
		h.logger.Error("encode frame", "event", event, "error", err)
		return err
	}
	err = h.router.Unicast(id, frame)
	if errors.Is(err, ErrDeliveryDropped) {
		h.deliveryFailed(id)
	}
	return err
}

func (h *Hub) deliveryFailed(id string) {
	h.metrics.DeliveriesFailed.WithLabelValues(metrics.FailBufferFull).Inc()
	h.evictions = append(h.evictions, id)
}

func (h *Hub) dropped(reason string) {
	h.metrics.InboundDropped.WithLabelValues(reason).Inc()
}

// now returns the current time, never earlier than a stamp already issued.
func (h *Hub) now() time.Time {
	t := time.Now().UTC()
	if t.Before(h.lastStamp) {
		t = h.lastStamp
	}
	h.lastStamp = t
	return t
}

func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down client connections", "connections", len(h.clients))

	for c := range h.clients {
		c.closeSend()
		if c.conn != nil {
			if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
				c.logger.Warn("close client connection", "error", err)
			}
		}
		delete(h.clients, c)
	}
	clear(h.joined)
	h.connections.Store(0)
	h.metrics.Connections.Set(0)
}

// Shutdown stops the event loop, closes every connection and waits for the
// pump goroutines or the context deadline.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info("initiating hub shutdown")
	h.cancel()

	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-ctx.Done():
		h.logger.Warn("hub shutdown deadline reached; some goroutines may still be running")
		return ctx.Err()
	}
}
