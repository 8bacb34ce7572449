package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/matthewbaird/entitygrid/internal/cache"
	"github.com/matthewbaird/entitygrid/internal/client"
	"github.com/matthewbaird/entitygrid/internal/eventbus"
	"github.com/matthewbaird/entitygrid/internal/field"
	"github.com/matthewbaird/entitygrid/internal/registry"
	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/state"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

const (
	snapshotKey = "cache-snapshot"
	schemaKey   = "schema"
)

// app is the client side wired together: schema, registry, transport, cache
// and the local state store.
type app struct {
	state     *state.SQLiteStore
	retention time.Duration
	schema    *schema.Schema
	registry  *registry.Registry
	client    *client.Client
	cache     *cache.Cache
	bus       *eventbus.Bus
}

func openApp(ctx context.Context) (*app, error) {
	st, err := state.OpenSQLite(ctx, settings.GetString(cfgKeyStateDB))
	if err != nil {
		return nil, err
	}
	a := &app{
		state:     st,
		retention: settings.GetDuration(cfgKeyRetention),
		registry:  registry.New(),
		bus:       eventbus.New(),
	}
	a.bus.Subscribe("log", eventbus.NewLogConsumer())
	a.client = client.New(settings.GetString(cfgKeyServer), a.registry, client.WithBus(a.bus))
	a.cache = cache.New(cache.WithBus(a.bus))

	if err := a.loadSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	a.registry.RegisterSchema(a.schema)

	if snap, ok, err := st.Get(ctx, snapshotKey); err != nil {
		log.Printf("state: reading snapshot: %v", err)
	} else if ok {
		if err := a.restore(snap); err != nil {
			log.Printf("state: discarding snapshot: %v", err)
		}
	}
	return a, nil
}

// loadSchema reads schema_file when configured, otherwise the copy saved
// from the server, otherwise asks the server.
func (a *app) loadSchema(ctx context.Context) error {
	if path := settings.GetString(cfgKeySchemaFile); path != "" {
		s, err := schema.LoadFile(path)
		if err != nil {
			return err
		}
		a.schema = s
		return nil
	}
	if saved, ok, err := a.state.Get(ctx, schemaKey); err == nil && ok {
		if s, err := schema.Parse([]byte(saved)); err == nil {
			a.schema = s
			return nil
		}
	}
	return a.fetchSchema(ctx)
}

func (a *app) fetchSchema(ctx context.Context) error {
	resp, err := await(ctx, func(ok client.SuccessFunc, fail client.FailureFunc) {
		a.client.Ajax(ctx, "Schema", "Describe", nil, 0, ok, fail)
	})
	if err != nil {
		return fmt.Errorf("fetch schema: %w", err)
	}
	s, err := schema.Parse(resp.AuxiliaryData)
	if err != nil {
		return err
	}
	a.schema = s
	return a.state.Set(ctx, schemaKey, string(resp.AuxiliaryData), a.retention)
}

func (a *app) restore(snap string) error {
	data, err := base64.StdEncoding.DecodeString(snap)
	if err != nil {
		return err
	}
	return a.cache.Restore(data, a.registry)
}

// save writes the cache snapshot back to the state store.
func (a *app) save(ctx context.Context) error {
	data, err := a.cache.Snapshot()
	if err != nil {
		return err
	}
	return a.state.Set(ctx, snapshotKey, base64.StdEncoding.EncodeToString(data), a.retention)
}

// pull applies the updates since the cache watermark.
func (a *app) pull(ctx context.Context) (cache.Result, error) {
	return client.NewPoller(a.client, a.cache, 0).Poll(ctx)
}

func (a *app) env() *field.Env {
	return field.NewEnv(a.schema, a.cache)
}

func (a *app) Close() error {
	a.client.Wait()
	return a.state.Close()
}

// await runs one asynchronous client call and blocks for its continuation.
func await(ctx context.Context, call func(client.SuccessFunc, client.FailureFunc)) (*wire.Response, error) {
	type outcome struct {
		resp *wire.Response
		err  error
	}
	done := make(chan outcome, 1)
	call(func(resp *wire.Response) { done <- outcome{resp: resp} },
		func(msg string) { done <- outcome{err: &client.RemoteError{Message: msg}} })
	select {
	case o := <-done:
		return o.resp, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
