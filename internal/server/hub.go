package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/challengehub/internal/observability"
	"github.com/Tyrowin/challengehub/internal/store"
)

// HubOptions configures a Hub. Zero fields fall back to defaults, and a nil
// Store means an in-memory backend.
type HubOptions struct {
	Store         store.Store
	Authenticator Authenticator
	Hub           HubConfig
	// Server supplies the per-connection read limit and rate limit.
	Server  ServerConfig
	Logger  *slog.Logger
	Metrics *observability.Metrics
	// Now overrides the clock used for activity and presence timestamps.
	Now func() time.Time
}

// Hub owns every open connection and the challenge rooms they join. A single
// Run goroutine registers and unregisters clients and drives the liveness
// monitor; request handlers run on each client's read pump.
type Hub struct {
	store          store.Store
	auth           Authenticator
	cfg            HubConfig
	rateLimit      RateLimitConfig
	maxMessageSize int64
	logger         *slog.Logger
	metrics        *observability.Metrics
	now            func() time.Time

	registry *Registry

	clients    map[*Client]struct{}
	mutex      sync.RWMutex
	register   chan *Client
	unregister chan *Client
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub ready to be started with Run.
func NewHub(opts HubOptions) *Hub {
	cfg := Config{Hub: opts.Hub, Server: opts.Server}.sanitize()

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Authenticator == nil {
		opts.Authenticator = TrustingAuthenticator{}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		store:          opts.Store,
		auth:           opts.Authenticator,
		cfg:            cfg.Hub,
		rateLimit:      cfg.Server.RateLimit,
		maxMessageSize: cfg.Server.MaxMessageSize,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		now:            opts.Now,
		registry:       NewRegistry(),
		clients:        make(map[*Client]struct{}),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

// Register hands a new connection to the Run loop, which starts its pumps.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// unregisterClient is called by a read pump on exit.
func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Run is the hub's main event loop. It returns when ctx is cancelled or
// Shutdown is called, after disconnecting every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	h.logger.Info("hub started", "heartbeat_interval", h.cfg.HeartbeatInterval)

	for {
		select {
		case <-ctx.Done():
			h.shutdownClients()
			return

		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn("received nil client registration; skipping")
				continue
			}
			h.addClient(client)
			if client.conn != nil {
				h.startPumps(client)
			}

		case client := <-h.unregister:
			h.disconnect(client)

		case <-ticker.C:
			h.sweep()
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mutex.Lock()
	h.clients[c] = struct{}{}
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.metrics.ConnectionOpened()
	c.logger.Info("client registered", "total_clients", clientCount)
}

func (h *Hub) startPumps(c *Client) {
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

// disconnect removes c from the hub, runs the leave protocol if it was joined
// and closes its send queue. Calling it more than once is harmless.
func (h *Hub) disconnect(c *Client) {
	h.mutex.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	clientCount := len(h.clients)
	h.mutex.Unlock()
	if !ok {
		return
	}

	// Closing first makes a concurrent join on the read pump fail instead of
	// re-adding the client after the leave below.
	c.closeSend()
	h.leave(context.WithoutCancel(h.ctx), c)

	h.metrics.ConnectionClosed()
	c.logger.Info("client unregistered", "total_clients", clientCount)
}

func (h *Hub) clientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// shutdownClients closes every connection and runs the leave protocol for
// joined clients.
func (h *Hub) shutdownClients() {
	clients := h.clientSnapshot()
	h.logger.Info("shutting down client connections", "count", len(clients))

	for _, client := range clients {
		client.closeConnection()
		h.disconnect(client)
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	return h.registry.RoomCount()
}

// Store returns the storage backend the hub reads and writes.
func (h *Hub) Store() store.Store {
	return h.store
}

// Shutdown stops the Run loop and waits for all client goroutines to finish.
// It returns context.DeadlineExceeded if that takes longer than timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")
	h.cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
	case <-timer.C:
		h.logger.Warn("hub shutdown timeout reached before run loop exited")
		return context.DeadlineExceeded
	}

	pumps := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(pumps)
	}()

	select {
	case <-pumps:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-timer.C:
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
