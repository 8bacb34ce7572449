package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/matthewbaird/entitygrid/internal/cache"
	"github.com/matthewbaird/entitygrid/internal/registry"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

// Subscriber keeps a cache current from a push endpoint.
type Subscriber struct {
	url      string
	cache    *cache.Cache
	registry *registry.Registry
	types    []string

	clientID   string
	httpClient *http.Client
	onBatch    func(cache.Result)
	pingEvery  time.Duration
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithClientID sends the client instance ID on the upgrade request.
func WithClientID(id string) SubscriberOption {
	return func(s *Subscriber) { s.clientID = id }
}

// WithHTTPClient sets the client used for the upgrade request.
func WithHTTPClient(c *http.Client) SubscriberOption {
	return func(s *Subscriber) { s.httpClient = c }
}

// WithBatchHook is called after every applied batch.
func WithBatchHook(fn func(cache.Result)) SubscriberOption {
	return func(s *Subscriber) { s.onBatch = fn }
}

// WithPing sends a ping at the given interval to keep idle connections and
// their sessions alive.
func WithPing(every time.Duration) SubscriberOption {
	return func(s *Subscriber) { s.pingEvery = every }
}

// NewSubscriber creates a subscriber for the given websocket URL following
// types (none means all).
func NewSubscriber(url string, c *cache.Cache, reg *registry.Registry, types []string, opts ...SubscriberOption) *Subscriber {
	if c == nil || reg == nil {
		panic("push: NewSubscriber needs a cache and a registry")
	}
	s := &Subscriber{url: url, cache: c, registry: reg, types: types}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run connects, subscribes from the cache watermark and applies batches
// until ctx ends or the connection fails. It returns nil when ctx ended.
func (s *Subscriber) Run(ctx context.Context) error {
	hdr := http.Header{}
	if s.clientID != "" {
		hdr.Set(ClientIDHeader, s.clientID)
	}
	conn, _, err := websocket.Dial(ctx, s.url, &websocket.DialOptions{HTTPClient: s.httpClient, HTTPHeader: hdr})
	if err != nil {
		return fmt.Errorf("push: dial %s: %w", s.url, err)
	}
	defer conn.CloseNow()

	sub, err := json.Marshal(SubscribeData{LastUpdate: s.cache.LastUpdate(), Types: s.types})
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, ClientMessage{Type: MsgSubscribe, ID: "subscribe", Data: sub}); err != nil {
		return fmt.Errorf("push: subscribe: %w", err)
	}
	if s.pingEvery > 0 {
		go s.ping(ctx, conn)
	}

	for {
		var msg InboundMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			return fmt.Errorf("push: read: %w", err)
		}
		switch msg.Type {
		case MsgSession:
			var data SessionData
			if err := json.Unmarshal(msg.Data, &data); err == nil {
				log.Printf("push: session %s", data.SessionID)
			}
		case MsgUpdates:
			if err := s.apply(ctx, msg.Data); err != nil {
				return err
			}
		case MsgError:
			var data ErrorData
			json.Unmarshal(msg.Data, &data)
			return fmt.Errorf("push: server error %s: %s", data.Code, data.Message)
		case MsgPong:
		default:
			log.Printf("push: ignoring message type %s", msg.Type)
		}
	}
}

func (s *Subscriber) apply(ctx context.Context, data json.RawMessage) error {
	var raw wire.RawResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("push: decode batch: %w", err)
	}
	resp, err := wire.Decode(&raw, s.registry)
	if err != nil {
		return fmt.Errorf("push: decode batch: %w", err)
	}
	res := s.cache.Apply(ctx, resp)
	if s.onBatch != nil {
		s.onBatch(res)
	}
	return nil
}

func (s *Subscriber) ping(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(s.pingEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := wsjson.Write(ctx, conn, ClientMessage{Type: MsgPing, ID: "ping"}); err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Printf("push: ping: %v", err)
				}
				return
			}
		}
	}
}
