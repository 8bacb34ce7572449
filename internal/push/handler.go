package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/matthewbaird/entitygrid/internal/session"
	"github.com/matthewbaird/entitygrid/internal/store"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

// ClientIDHeader carries the client instance ID on the upgrade request.
const ClientIDHeader = "X-Client-ID"

// ChangeSource reads the change log backlog of new subscriptions.
type ChangeSource interface {
	Changes(ctx context.Context, since int64, types ...string) ([]store.Change, error)
}

// Handler manages websocket connections for push.
type Handler struct {
	sessions *session.Manager
	hub      *Hub
	changes  ChangeSource
}

// NewHandler creates a websocket handler.
func NewHandler(sessions *session.Manager, hub *Hub, changes ChangeSource) *Handler {
	return &Handler{sessions: sessions, hub: hub, changes: changes}
}

type connection struct {
	conn    *websocket.Conn
	sess    *session.Session
	changes ChangeSource
	mu      sync.Mutex // serialises batches so the watermark check and write stay paired
}

// ServeHTTP upgrades to websocket and runs the message loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("push: websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := h.sessions.Create(r.Header.Get(ClientIDHeader))
	defer h.sessions.Remove(sess.ID)
	c := &connection{conn: conn, sess: sess, changes: h.changes}

	send(ctx, conn, ServerMessage{Type: MsgSession, Data: SessionData{SessionID: sess.ID}})

	var sub *subscription
	defer func() {
		if sub != nil {
			h.hub.remove(sub)
		}
	}()

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("push: connection closed: %v", websocket.CloseStatus(err))
			}
			return
		}
		h.sessions.Touch(sess)

		switch msg.Type {
		case MsgSubscribe:
			var data SubscribeData
			if err := json.Unmarshal(msg.Data, &data); err != nil || data.LastUpdate < 0 {
				sendError(ctx, conn, msg.ID, "invalid_data", "invalid subscribe data")
				continue
			}
			if sub != nil {
				h.hub.remove(sub)
			}
			sess.Follow(data.Types, data.LastUpdate)
			// Register before reading the backlog so nothing committed in
			// between is missed; the watermark filters the overlap.
			sub = h.hub.add(sess)
			backlog, err := h.changes.Changes(ctx, data.LastUpdate, data.Types...)
			if err != nil {
				sendError(ctx, conn, msg.ID, "backlog", err.Error())
				continue
			}
			c.deliver(ctx, msg.ID, backlog, true)
			go c.forward(ctx, sub, cancel)
		case MsgPing:
			send(ctx, conn, ServerMessage{Type: MsgPong, RequestID: msg.ID})
		default:
			sendError(ctx, conn, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

func (c *connection) forward(ctx context.Context, sub *subscription, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			if sub.dropped.Load() {
				c.conn.Close(websocket.StatusPolicyViolation, "too slow")
				cancel()
			}
			return
		case <-sub.ch:
			c.catchUp(ctx)
		}
	}
}

// catchUp sends everything committed after the session watermark, read
// back from the change log in sequence order.
func (c *connection) catchUp(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	changes, err := c.changes.Changes(ctx, c.sess.Watermark(), c.sess.Followed()...)
	if err != nil {
		log.Printf("push: read changes for %s: %v", c.sess.ID, err)
		return
	}
	c.write(ctx, "", changes, false)
}

// deliver sends the changes the client has not seen yet. A subscription
// reply is sent even when empty so the client knows it is live.
func (c *connection) deliver(ctx context.Context, requestID string, changes []store.Change, always bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.write(ctx, requestID, changes, always)
}

func (c *connection) write(ctx context.Context, requestID string, changes []store.Change, always bool) {
	mark := c.sess.Watermark()
	resp := &wire.Response{LastUpdate: mark}
	for _, ch := range changes {
		if ch.Seq <= mark {
			continue
		}
		resp.Updates = append(resp.Updates, ch.Update(ch.Type))
		resp.LastUpdate = max(resp.LastUpdate, ch.Seq)
	}
	if len(resp.Updates) == 0 && !always {
		return
	}
	raw, err := wire.Encode(resp)
	if err != nil {
		log.Printf("push: encode batch: %v", err)
		return
	}
	if send(ctx, c.conn, ServerMessage{Type: MsgUpdates, RequestID: requestID, Data: raw}) {
		c.sess.Advance(resp.LastUpdate)
	}
}

func send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) bool {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		log.Printf("push: write error: %v", err)
		return false
	}
	return true
}

func sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	send(ctx, conn, ServerMessage{
		Type:      MsgError,
		RequestID: requestID,
		Data: ErrorData{
			Code:    code,
			Message: message,
		},
	})
}
