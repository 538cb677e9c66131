package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/atoz-auto/autoshop-api/authz"
	"github.com/atoz-auto/autoshop-api/events"
	"github.com/atoz-auto/autoshop-api/identity"
	"github.com/atoz-auto/autoshop-api/logger"
	"github.com/atoz-auto/autoshop-api/metrics"
	"github.com/atoz-auto/autoshop-api/middleware"
	"github.com/atoz-auto/autoshop-api/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Event names on the wire.
const (
	EventOrderStatus  = "order:status"
	EventOrderUpdated = "order:updated"
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventError        = "error"
)

// Authorizer decides whether a principal may subscribe to an order's room.
type Authorizer interface {
	AuthorizeSubscription(ctx context.Context, p identity.Principal, orderID uint) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, p identity.Principal, orderID uint) error

func (f AuthorizerFunc) AuthorizeSubscription(ctx context.Context, p identity.Principal, orderID uint) error {
	return f(ctx, p, orderID)
}

// OwnerLookup resolves the customer that owns an order.
type OwnerLookup interface {
	OrderOwner(ctx context.Context, orderID uint) (uint, error)
}

// OrderAuthorizer permits a subscription when the gate allows the principal
// to follow the order. Missing and foreign orders are both NotFound for
// customers.
func OrderAuthorizer(orders OwnerLookup) Authorizer {
	return AuthorizerFunc(func(ctx context.Context, p identity.Principal, orderID uint) error {
		owner, err := orders.OrderOwner(ctx, orderID)
		if err != nil {
			return err
		}
		return authz.Decide(p, authz.ActionSubscribeOrder, authz.Resource{OwnerID: owner})
	})
}

// Options tunes the hub.
type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
	Metrics        *metrics.Registry
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	return o
}

// Frame is the envelope for every server message.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type statusPayload struct {
	OrderID   uint      `json:"orderId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type updatedPayload struct {
	OrderID uint   `json:"orderId"`
	Status  string `json:"status"`
}

// Hub fans order events out to websocket clients. Each order has a room of
// subscribers; staff connections also receive every update on a global
// feed. Delivery never blocks: a client whose buffer is full is dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	rooms   map[uint]map[*client]struct{}
	closed  bool

	authorizer Authorizer
	upgrader   websocket.Upgrader
	opts       Options
}

func NewHub(authorizer Authorizer, opts Options) *Hub {
	opts = opts.withDefaults()
	h := &Hub{
		clients:    make(map[*client]struct{}),
		rooms:      make(map[uint]map[*client]struct{}),
		authorizer: authorizer,
		opts:       opts,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

// Publish implements events.Publisher.
func (h *Hub) Publish(_ context.Context, evt events.OrderEvent) error {
	status, err := json.Marshal(Frame{Event: EventOrderStatus, Data: statusPayload{
		OrderID:   evt.OrderID,
		Status:    evt.Status,
		Timestamp: evt.Timestamp,
	}})
	if err != nil {
		return err
	}
	updated, err := json.Marshal(Frame{Event: EventOrderUpdated, Data: updatedPayload{
		OrderID: evt.OrderID,
		Status:  evt.Status,
	}})
	if err != nil {
		return err
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.rooms[evt.OrderID] {
		if !c.trySend(status) {
			slow = append(slow, c)
		}
	}
	for c := range h.clients {
		if c.feed && !c.trySend(updated) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.remove(c, true)
	}
	return nil
}

// ServeWS upgrades an authenticated request to a websocket connection.
// It must run behind middleware.RequireAuth.
func (h *Hub) ServeWS(c *gin.Context) {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		logger.FromContext(c.Request.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	cl := newClient(h, conn, p)
	cl.feed = authz.Decide(p, authz.ActionSubscribeFeed, authz.Resource{}) == nil
	if !h.add(cl) {
		_ = conn.Close()
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	go cl.writePump()
	cl.readPump(ctx)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c, false)
	}
}

// Stats reports connected clients and non-empty rooms.
func (h *Hub) Stats() (clients, rooms int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.rooms)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.opts.Metrics.ClientConnected()
	return true
}

func (h *Hub) remove(c *client, dropped bool) {
	h.mu.Lock()
	_, present := h.clients[c]
	if present {
		delete(h.clients, c)
		for orderID := range c.subs {
			h.leaveLocked(c, orderID)
		}
	}
	h.mu.Unlock()

	if present {
		h.opts.Metrics.ClientDisconnected(dropped)
	}
	c.close()
}

func (h *Hub) subscribe(c *client, orderID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	room, ok := h.rooms[orderID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[orderID] = room
	}
	room[c] = struct{}{}
	c.subs[orderID] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, orderID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, orderID)
}

func (h *Hub) leaveLocked(c *client, orderID uint) {
	delete(c.subs, orderID)
	if room, ok := h.rooms[orderID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, orderID)
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[strings.ToLower(o)] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		return set[strings.ToLower(strings.TrimRight(origin, "/"))]
	}
}
