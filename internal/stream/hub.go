// Package stream fans per-tick snapshots out to external renderers over
// WebSocket and serves the latest snapshot over plain HTTP.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/signalsfoundry/orbital-flight-sim/internal/logging"
	"github.com/signalsfoundry/orbital-flight-sim/internal/observability"
	"github.com/signalsfoundry/orbital-flight-sim/kb"
	"github.com/signalsfoundry/orbital-flight-sim/model"
)

// readLimit bounds inbound frames; clients only ever send control frames.
const readLimit = 512

// SnapshotSource supplies the most recent frame. kb.KnowledgeBase
// implements it.
type SnapshotSource interface {
	LatestSnapshot() (model.FrameSnapshot, bool)
}

// Options configures a Hub.
type Options struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	AllowedOrigins []string
	// Every forwards one snapshot out of this many ticks.
	Every int
}

func (o Options) withDefaults() Options {
	if o.SendBuffer < 1 {
		o.SendBuffer = 16
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Every < 1 {
		o.Every = 1
	}
	if len(o.AllowedOrigins) == 0 {
		o.AllowedOrigins = []string{"*"}
	}
	return o
}

// Hub tracks connected stream clients. Publish never blocks the tick loop:
// a client whose buffer is full misses that frame.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	opts     Options
	source   SnapshotSource
	metrics  *observability.StreamCollector
	log      logging.Logger
	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// NewHub constructs a hub. source, metrics and log may be nil.
func NewHub(source SnapshotSource, opts Options, metrics *observability.StreamCollector, log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	h := &Hub{
		clients: make(map[*client]struct{}),
		opts:    opts.withDefaults(),
		source:  source,
		metrics: metrics,
		log:     log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish encodes a snapshot and queues it for every client. It is meant
// to be registered as a tick listener or fed from kb events.
func (h *Hub) Publish(snap model.FrameSnapshot) {
	if snap.Tick%uint64(h.opts.Every) != 0 {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		h.log.Warn(context.Background(), "stream: encode snapshot failed",
			logging.Uint64("tick", snap.Tick),
			logging.Err(err),
		)
		return
	}
	h.Broadcast(payload)
}

// Broadcast queues an encoded frame for every client.
func (h *Hub) Broadcast(payload []byte) {
	start := time.Now()

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- payload:
			h.metrics.IncSent()
		default:
			h.metrics.IncDropped()
		}
	}
	h.mu.Unlock()

	h.metrics.ObserveBroadcast(time.Since(start))
}

// SubscribeTo forwards every snapshot published into store. It returns the
// unsubscribe function.
func (h *Hub) SubscribeTo(store *kb.KnowledgeBase) func() {
	return store.Subscribe(func(ev kb.Event) {
		if ev.Type == kb.EventSnapshotPublished && ev.Snapshot != nil {
			h.Publish(*ev.Snapshot)
		}
	})
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.SetClients(len(h.clients))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.metrics.SetClients(len(h.clients))
	h.mu.Unlock()
	c.close()
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.metrics.SetClients(0)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// ServeWS upgrades the request and streams snapshots until the client goes
// away. A newly connected client first receives the latest snapshot.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug(r.Context(), "stream: upgrade failed", logging.Err(err))
		return
	}
	c := &client{
		conn: conn,
		send: make(chan []byte, h.opts.SendBuffer),
		done: make(chan struct{}),
	}
	if h.source != nil {
		if snap, ok := h.source.LatestSnapshot(); ok {
			if payload, err := json.Marshal(snap); err == nil {
				c.send <- payload
			}
		}
	}
	if !h.register(c) {
		c.close()
		return
	}
	h.log.Debug(r.Context(), "stream: client connected",
		logging.String("remote", r.RemoteAddr),
		logging.Int("clients", h.Clients()),
	)

	go h.writeLoop(c)
	h.readLoop(c)

	h.unregister(c)
	h.log.Debug(r.Context(), "stream: client disconnected",
		logging.String("remote", r.RemoteAddr),
	)
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.log.Warn(context.Background(), "stream: write failed, dropping client",
					logging.String("remote", c.conn.RemoteAddr().String()),
					logging.Err(err),
				)
				c.close()
				return
			}
		}
	}
}

// readLoop drains inbound frames so close and ping control frames are
// processed. It returns when the connection fails or is closed.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(readLimit)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ServeSnapshot writes the latest snapshot as JSON, or 404 before the first
// tick.
func (h *Hub) ServeSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		http.Error(w, "no snapshot source", http.StatusNotFound)
		return
	}
	snap, ok := h.source.LatestSnapshot()
	if !ok {
		http.Error(w, "no snapshot yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.log.Warn(r.Context(), "stream: write snapshot failed", logging.Err(err))
	}
}

// Handler serves /stream and /snapshot behind CORS.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", h.ServeWS)
	mux.HandleFunc("/snapshot", h.ServeSnapshot)

	c := cors.New(cors.Options{
		AllowedOrigins: h.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(mux)
}
