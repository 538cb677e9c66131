package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/atoz-auto/autoshop-api/identity"
	"github.com/atoz-auto/autoshop-api/logger"
	"github.com/gorilla/websocket"
)

type command struct {
	Action  string `json:"action"`
	OrderID uint   `json:"orderId"`
}

type client struct {
	hub       *Hub
	conn      *websocket.Conn
	principal identity.Principal
	feed      bool
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// subs is guarded by hub.mu.
	subs map[uint]struct{}
}

func newClient(h *Hub, conn *websocket.Conn, p identity.Principal) *client {
	return &client{
		hub:       h,
		conn:      conn,
		principal: p,
		send:      make(chan []byte, h.opts.SendBuffer),
		done:      make(chan struct{}),
		subs:      make(map[uint]struct{}),
	}
}

// trySend queues msg without blocking. It returns false when the buffer is full.
func (c *client) trySend(msg []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *client) readPump(ctx context.Context) {
	defer c.hub.remove(c, false)

	log := logger.FromContext(ctx)
	opts := c.hub.opts
	c.conn.SetReadLimit(opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.reply(EventError, errorPayload(apperrors.Validation("Message must be JSON")))
			continue
		}
		c.handle(ctx, cmd)
	}
}

func (c *client) handle(ctx context.Context, cmd command) {
	if cmd.OrderID == 0 {
		c.reply(EventError, errorPayload(apperrors.Validation("orderId is required")))
		return
	}

	switch cmd.Action {
	case "subscribe":
		if err := c.hub.authorizer.AuthorizeSubscription(ctx, c.principal, cmd.OrderID); err != nil {
			payload := errorPayload(err)
			payload["orderId"] = cmd.OrderID
			c.reply(EventError, payload)
			return
		}
		c.hub.subscribe(c, cmd.OrderID)
		c.reply(EventSubscribed, map[string]any{"orderId": cmd.OrderID})
	case "unsubscribe":
		c.hub.unsubscribe(c, cmd.OrderID)
		c.reply(EventUnsubscribed, map[string]any{"orderId": cmd.OrderID})
	default:
		c.reply(EventError, errorPayload(apperrors.Validation("action must be subscribe or unsubscribe")))
	}
}

func (c *client) reply(event string, data any) {
	msg, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return
	}
	if !c.trySend(msg) {
		c.hub.remove(c, true)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	writeWait := c.hub.opts.WriteWait
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func errorPayload(err error) map[string]any {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal(err, "Subscription failed")
	}
	return map[string]any{"code": appErr.Code(), "message": appErr.Message()}
}
