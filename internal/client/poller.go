package client

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/matthewbaird/entitygrid/internal/cache"
	"github.com/matthewbaird/entitygrid/internal/types"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

// RemoteError is a failure message returned by the server or the transport.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// Poller keeps a cache current by fetching deltas since its watermark.
type Poller struct {
	client   *Client
	cache    *cache.Cache
	queries  []types.Query
	interval time.Duration
}

// NewPoller creates a poller. With no queries it fetches all updates,
// otherwise only the updates of the given live queries.
func NewPoller(c *Client, ch *cache.Cache, interval time.Duration, queries ...types.Query) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{client: c, cache: ch, queries: queries, interval: interval}
}

// Poll performs one round and applies the reply to the cache.
func (p *Poller) Poll(ctx context.Context) (cache.Result, error) {
	resp, err := p.fetch(ctx)
	if err != nil {
		return cache.Result{}, err
	}
	return p.cache.Apply(ctx, resp), nil
}

func (p *Poller) fetch(ctx context.Context) (*wire.Response, error) {
	type outcome struct {
		resp *wire.Response
		err  error
	}
	done := make(chan outcome, 1)
	success := func(resp *wire.Response) { done <- outcome{resp: resp} }
	failure := func(msg string) { done <- outcome{err: &RemoteError{Message: msg}} }

	since := p.cache.LastUpdate()
	if len(p.queries) == 0 {
		p.client.AllUpdates(ctx, since, success, failure)
	} else {
		p.client.QueryUpdates(ctx, p.queries, since, success, failure)
	}

	select {
	case o := <-done:
		return o.resp, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run polls until the context is cancelled. Rounds never overlap: the next
// tick waits for the previous round to finish.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		res, err := p.Poll(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case err != nil:
			log.Printf("client: poll failed: %v", err)
		case res.Applied() > 0:
			log.Printf("client: poll applied %d updates, lastUpdate=%d", res.Applied(), p.cache.LastUpdate())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
