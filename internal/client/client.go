// Package client implements the asynchronous sync client: every remote
// operation posts a form to {base}{action}, decodes the reply and invokes
// exactly one of the caller's continuations.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/entitygrid/internal/eventbus"
	"github.com/matthewbaird/entitygrid/internal/registry"
	"github.com/matthewbaird/entitygrid/internal/types"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

// SuccessFunc receives a decoded reply.
type SuccessFunc func(resp *wire.Response)

// FailureFunc receives a user-facing error message.
type FailureFunc func(msg string)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestIDHeader carries the per-call request key.
const RequestIDHeader = "X-Request-ID"

// ClientIDHeader carries the client instance ID.
const ClientIDHeader = "X-Client-ID"

// Client talks to one controller base URI.
type Client struct {
	base     string
	http     Doer
	registry *registry.Registry
	bus      *eventbus.Bus
	id       string

	counter atomic.Int64
	wg      sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithBus publishes LoadingStarted/LoadingFinished around every round trip.
func WithBus(b *eventbus.Bus) Option {
	return func(c *Client) { c.bus = b }
}

// New creates a client for a controller base URI such as
// "https://host/data/". The registry materializes reply entities.
func New(base string, reg *registry.Registry, opts ...Option) *Client {
	if base == "" {
		panic("client: empty controller base")
	}
	if reg == nil {
		panic("client: nil registry")
	}
	c := &Client{
		base:     base,
		http:     &http.Client{Timeout: 60 * time.Second},
		registry: reg,
		id:       uuid.New().String(),
		inflight: make(map[string]time.Time),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ID returns the client instance ID sent with every request.
func (c *Client) ID() string { return c.id }

// Registry returns the registry used to decode replies.
func (c *Client) Registry() *registry.Registry { return c.registry }

// Wait blocks until every round trip started so far has finished.
func (c *Client) Wait() { c.wg.Wait() }

// Pending returns the request keys currently in flight, oldest first.
func (c *Client) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.inflight))
	for k := range c.inflight {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return c.inflight[a].Compare(c.inflight[b])
	})
	return keys
}

// ── Operations ──────────────────────────────────────────────────────────────

// Ajax calls a custom server action. data is serialised to JSON.
func (c *Client) Ajax(ctx context.Context, controller, action string, data any, lastUpdate int64, success SuccessFunc, failure FailureFunc) {
	mustCallbacks(success, failure)
	mustWatermark(lastUpdate)
	if controller == "" || action == "" {
		panic("client: ajax needs a controller and an action")
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		panic(fmt.Sprintf("client: ajax data is not serialisable: %v", err))
	}
	form := url.Values{}
	form.Set(wire.FieldController, controller)
	form.Set(wire.FieldAction, action)
	form.Set(wire.FieldDataJSON, string(dataJSON))
	form.Set(wire.FieldLastUpdate, strconv.FormatInt(lastUpdate, 10))
	c.send(ctx, wire.ActionAjax, form, success, failure)
}

// CreateEntity persists a new entity.
func (c *Client) CreateEntity(ctx context.Context, e *types.Entity, lastUpdate int64, success SuccessFunc, failure FailureFunc) {
	c.entityOp(ctx, wire.ActionCreateEntity, e, lastUpdate, success, failure)
}

// UpdateEntity persists changes to an existing entity.
func (c *Client) UpdateEntity(ctx context.Context, e *types.Entity, lastUpdate int64, success SuccessFunc, failure FailureFunc) {
	c.entityOp(ctx, wire.ActionUpdateEntity, e, lastUpdate, success, failure)
}

// DeleteEntity removes an entity.
func (c *Client) DeleteEntity(ctx context.Context, e *types.Entity, lastUpdate int64, success SuccessFunc, failure FailureFunc) {
	c.entityOp(ctx, wire.ActionDeleteEntity, e, lastUpdate, success, failure)
}

func (c *Client) entityOp(ctx context.Context, action string, e *types.Entity, lastUpdate int64, success SuccessFunc, failure FailureFunc) {
	mustCallbacks(success, failure)
	mustWatermark(lastUpdate)
	if err := e.Validate(); err != nil {
		panic(fmt.Sprintf("client: %s: %v", action, err))
	}
	entityJSON, err := json.Marshal(e)
	if err != nil {
		panic(fmt.Sprintf("client: %s: entity is not serialisable: %v", action, err))
	}
	form := url.Values{}
	form.Set(wire.FieldLastUpdate, strconv.FormatInt(lastUpdate, 10))
	form.Set(wire.FieldType, e.Type)
	form.Set(wire.FieldEntityJSON, string(entityJSON))
	c.send(ctx, action, form, success, failure)
}

// QueryUpdates fetches the deltas of the given live queries since lastUpdate.
func (c *Client) QueryUpdates(ctx context.Context, queries []types.Query, lastUpdate int64, success SuccessFunc, failure FailureFunc) {
	c.queryOp(ctx, wire.ActionGetQueryUpdates, queries, lastUpdate, success, failure)
}

// AllUpdates fetches every delta since lastUpdate.
func (c *Client) AllUpdates(ctx context.Context, lastUpdate int64, success SuccessFunc, failure FailureFunc) {
	mustCallbacks(success, failure)
	mustWatermark(lastUpdate)
	form := url.Values{}
	form.Set(wire.FieldLastUpdate, strconv.FormatInt(lastUpdate, 10))
	c.send(ctx, wire.ActionGetAllUpdates, form, success, failure)
}

// Query runs ad-hoc queries; the reply carries result sets, not deltas.
// Use wire.DecodeQueryResults on the response.
func (c *Client) Query(ctx context.Context, queries []types.Query, lastUpdate int64, success SuccessFunc, failure FailureFunc) {
	c.queryOp(ctx, wire.ActionQuery, queries, lastUpdate, success, failure)
}

func (c *Client) queryOp(ctx context.Context, action string, queries []types.Query, lastUpdate int64, success SuccessFunc, failure FailureFunc) {
	mustCallbacks(success, failure)
	mustWatermark(lastUpdate)
	if len(queries) == 0 {
		panic("client: " + action + " needs at least one query")
	}
	data, err := json.Marshal(queries)
	if err != nil {
		panic(fmt.Sprintf("client: %s: %v", action, err))
	}
	form := url.Values{}
	form.Set(wire.FieldQueries, string(data))
	form.Set(wire.FieldLastUpdate, strconv.FormatInt(lastUpdate, 10))
	c.send(ctx, action, form, success, failure)
}

// ── Round trip ──────────────────────────────────────────────────────────────

func (c *Client) send(ctx context.Context, action string, form url.Values, success SuccessFunc, failure FailureFunc) {
	uri := c.base + action
	key := uri + strconv.FormatInt(c.counter.Add(1), 10)
	start := time.Now()

	c.mu.Lock()
	c.inflight[key] = start
	c.mu.Unlock()

	c.bus.Publish(ctx, eventbus.Event{Type: eventbus.LoadingStarted, Action: action, RequestID: key})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		failed := !c.roundTrip(ctx, uri, key, form, success, failure)
		elapsed := time.Since(start)

		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()

		log.Printf("client: %s completed. took %s", uri, elapsed)
		c.bus.Publish(ctx, eventbus.Event{
			Type:      eventbus.LoadingFinished,
			Action:    action,
			RequestID: key,
			Elapsed:   elapsed,
			Failed:    failed,
		})
	}()
}

// roundTrip performs the request and calls exactly one continuation.
// Reports whether success was called.
func (c *Client) roundTrip(ctx context.Context, uri, key string, form url.Values, success SuccessFunc, failure FailureFunc) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, strings.NewReader(form.Encode()))
	if err != nil {
		log.Printf("client: build request %s: %v", uri, err)
		failure(wire.UnexpectedError)
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(RequestIDHeader, key)
	req.Header.Set(ClientIDHeader, c.id)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("client: %s: %v", uri, err)
		failure(wire.UnexpectedError)
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("client: %s: status %d, read error %v", uri, resp.StatusCode, err)
		failure(wire.UnexpectedError)
		return false
	}

	if msg, ok := wire.ParseErrorBody(body); ok {
		failure(msg)
		return false
	}

	decoded, err := wire.DecodeResponse(body, c.registry)
	if err != nil {
		log.Printf("client: %s: %v", uri, err)
		failure(wire.UnexpectedError)
		return false
	}
	success(decoded)
	return true
}

// ── Preconditions ───────────────────────────────────────────────────────────

func mustCallbacks(success SuccessFunc, failure FailureFunc) {
	if success == nil || failure == nil {
		panic("client: success and failure callbacks are required")
	}
}

func mustWatermark(lastUpdate int64) {
	if lastUpdate < 0 {
		panic(fmt.Sprintf("client: negative lastUpdate %d", lastUpdate))
	}
}
