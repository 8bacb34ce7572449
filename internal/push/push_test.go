package push

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/entitygrid/internal/cache"
	"github.com/matthewbaird/entitygrid/internal/registry"
	"github.com/matthewbaird/entitygrid/internal/session"
	"github.com/matthewbaird/entitygrid/internal/store"
	"github.com/matthewbaird/entitygrid/internal/types"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

func customer(name string) *types.Entity {
	e := types.NewEntity("Customer", 0)
	e.Set("CustomerName", name)
	return e
}

func newServer(t *testing.T) (*store.MemoryStore, *Hub, *session.Manager, string) {
	t.Helper()
	st := store.NewMemoryStore()
	hub := NewHub(0)
	sessions := session.NewManager(time.Hour, time.Hour)
	srv := httptest.NewServer(NewHandler(sessions, hub, st))
	t.Cleanup(srv.Close)
	return st, hub, sessions, srv.URL
}

func testRegistry() *registry.Registry {
	reg := registry.New()
	reg.MustRegister("Customer", registry.DefaultFactory("Customer"))
	reg.MustRegister("Order", registry.DefaultFactory("Order"))
	return reg
}

func waitBatch(t *testing.T, ch <-chan cache.Result) cache.Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for batch")
		return cache.Result{}
	}
}

func TestSubscriber_BacklogAndLive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st, hub, _, url := newServer(t)

	_, err := st.Create(ctx, customer("a"))
	require.NoError(t, err)
	_, err = st.Create(ctx, customer("b"))
	require.NoError(t, err)
	_, err = st.Create(ctx, types.NewEntity("Order", 0))
	require.NoError(t, err)

	c := cache.New()
	batches := make(chan cache.Result, 8)
	sub := NewSubscriber(url, c, testRegistry(), []string{"Customer"},
		WithClientID("test-client"),
		WithBatchHook(func(r cache.Result) { batches <- r }),
	)
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	res := waitBatch(t, batches)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, c.Len("Customer"))
	assert.Equal(t, 0, c.Len("Order"), "unfollowed types are not sent")
	assert.Equal(t, int64(2), c.LastUpdate())

	require.Eventually(t, func() bool { return hub.Len() == 1 }, 5*time.Second, 10*time.Millisecond)
	ch, err := st.Create(ctx, customer("c"))
	require.NoError(t, err)
	other, err := st.Create(ctx, types.NewEntity("Order", 0))
	require.NoError(t, err)
	hub.Publish(ch, other)

	res = waitBatch(t, batches)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 3, c.Len("Customer"))
	assert.Equal(t, int64(4), c.LastUpdate())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestSubscriber_FromWatermark(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st, _, _, url := newServer(t)
	for _, n := range []string{"a", "b", "c"} {
		_, err := st.Create(ctx, customer(n))
		require.NoError(t, err)
	}

	changes, err := st.Changes(ctx, 0)
	require.NoError(t, err)
	c := cache.New()
	c.ApplyUpdates(ctx, []wire.Update{changes[0].Update("Customer"), changes[1].Update("Customer")})
	require.Equal(t, int64(2), c.LastUpdate())

	batches := make(chan cache.Result, 8)
	sub := NewSubscriber(url, c, testRegistry(), nil, WithBatchHook(func(r cache.Result) { batches <- r }))
	go sub.Run(ctx)

	res := waitBatch(t, batches)
	assert.Equal(t, 1, res.Created, "only changes after the watermark are sent")
	assert.Equal(t, 3, c.Len("Customer"))
}

func TestSubscriber_PublishOutOfOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st, hub, _, url := newServer(t)
	_, err := st.Create(ctx, customer("a"))
	require.NoError(t, err)

	c := cache.New()
	batches := make(chan cache.Result, 8)
	sub := NewSubscriber(url, c, testRegistry(), []string{"Customer"}, WithBatchHook(func(r cache.Result) { batches <- r }))
	go sub.Run(ctx)
	waitBatch(t, batches)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	first, err := st.Create(ctx, customer("b"))
	require.NoError(t, err)
	second, err := st.Create(ctx, customer("c"))
	require.NoError(t, err)
	hub.Publish(second)
	hub.Publish(first)

	require.Eventually(t, func() bool { return c.Len("Customer") == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(3), c.LastUpdate())
}

func TestHandler_Protocol(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, sessions, url := newServer(t)

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var msg InboundMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, MsgSession, msg.Type)
	var sess SessionData
	require.NoError(t, json.Unmarshal(msg.Data, &sess))
	assert.NotEmpty(t, sess.SessionID)
	assert.Equal(t, 1, sessions.Len())

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: MsgPing, ID: "p1"}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, MsgPong, msg.Type)
	assert.Equal(t, "p1", msg.RequestID)

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: "bogus", ID: "b1"}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, MsgError, msg.Type)
	var e ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	assert.Equal(t, "unknown_type", e.Code)

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: MsgSubscribe, ID: "s1", Data: json.RawMessage(`{"last_update":-1}`)}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, MsgError, msg.Type)

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: MsgSubscribe, ID: "s2", Data: json.RawMessage(`{"last_update":0}`)}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, MsgUpdates, msg.Type)
	assert.Equal(t, "s2", msg.RequestID)
	assert.JSONEq(t, `{"lastUpdate":0,"Updates":[]}`, string(msg.Data))

	conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return sessions.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHub_PublishFiltersAndDropsSlow(t *testing.T) {
	hub := NewHub(1)
	m := session.NewManager(time.Hour, time.Hour)

	customers := m.Create("")
	customers.Follow([]string{"Customer"}, 0)
	everything := m.Create("")

	a := hub.add(customers)
	b := hub.add(everything)
	require.Equal(t, 2, hub.Len())

	hub.Publish(store.Change{Seq: 1, Type: "Order"})
	assert.Len(t, a.ch, 0)
	assert.Len(t, b.ch, 1)

	hub.Publish(store.Change{Seq: 2, Type: "Customer"})
	assert.Len(t, a.ch, 1)
	assert.True(t, b.dropped.Load(), "full queue drops the subscription")
	assert.Equal(t, 1, hub.Len())

	select {
	case <-b.done:
	default:
		t.Fatal("dropped subscription not closed")
	}

	hub.remove(a)
	hub.remove(a)
	assert.Equal(t, 0, hub.Len())
	var nilHub *Hub
	nilHub.Publish(store.Change{Seq: 3})
}
