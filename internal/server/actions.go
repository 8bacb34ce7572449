package server

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/matthewbaird/entitygrid/internal/filter"
	"github.com/matthewbaird/entitygrid/internal/store"
	"github.com/matthewbaird/entitygrid/internal/types"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

// allUpdates answers with every change after lastUpdate, each scoped to a
// query named after its type.
func (s *Server) allUpdates(ctx context.Context, lastUpdate int64) (*wire.Response, error) {
	changes, err := s.cfg.Store.Changes(ctx, lastUpdate)
	if err != nil {
		return nil, err
	}
	resp := &wire.Response{LastUpdate: lastUpdate}
	for _, c := range changes {
		resp.Updates = append(resp.Updates, c.Update(c.Type))
		resp.LastUpdate = max(resp.LastUpdate, c.Seq)
	}
	return resp, nil
}

func (s *Server) handleAllUpdates(w http.ResponseWriter, r *http.Request) {
	lastUpdate, err := parseLastUpdate(r)
	if err != nil {
		writeError(w, err.Error())
		return
	}
	resp, err := s.allUpdates(r.Context(), lastUpdate)
	if err != nil {
		storeErrorToReply(w, err)
		return
	}
	writeResponse(w, resp)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, e *types.Entity) (store.Change, error) {
		if msg := s.validate(e); msg != "" {
			return store.Change{}, validationError(msg)
		}
		return s.cfg.Store.Create(ctx, e)
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, e *types.Entity) (store.Change, error) {
		if msg := s.validate(e); msg != "" {
			return store.Change{}, validationError(msg)
		}
		return s.cfg.Store.Update(ctx, e)
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, e *types.Entity) (store.Change, error) {
		if e.IsNew() {
			return store.Change{}, store.ErrNoID
		}
		return s.cfg.Store.Delete(ctx, e.Type, e.ID)
	})
}

type validationError string

func (v validationError) Error() string { return string(v) }

// mutate runs one entity operation and answers with the stored entity plus
// every change since the client's watermark, its own change included.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, *types.Entity) (store.Change, error)) {
	ctx := r.Context()
	lastUpdate, err := parseLastUpdate(r)
	if err != nil {
		writeError(w, err.Error())
		return
	}
	e, err := s.parseEntity(r)
	if err != nil {
		writeError(w, err.Error())
		return
	}
	change, err := op(ctx, e)
	if v, ok := err.(validationError); ok {
		writeError(w, string(v))
		return
	}
	if err != nil {
		storeErrorToReply(w, err)
		return
	}
	s.cfg.Hub.Publish(change)

	resp, err := s.allUpdates(ctx, lastUpdate)
	if err != nil {
		storeErrorToReply(w, err)
		return
	}
	resp.ResponseEntity = change.Entity
	writeResponse(w, resp)
}

// validate returns the schema failures of an entity joined into one
// message, or "".
func (s *Server) validate(e *types.Entity) string {
	if s.cfg.Schema == nil {
		return ""
	}
	errs := s.cfg.Schema.ValidateEntity(e)
	if len(errs) == 0 {
		return ""
	}
	var msgs []string
	for _, prop := range slices.Sorted(maps.Keys(errs)) {
		msgs = append(msgs, errs[prop]...)
	}
	return strings.Join(msgs, " ")
}

// handleQueryUpdates answers with the changes of each query's type since
// lastUpdate. An entity that fails a query's filter is sent as a delete so it
// leaves the client's view, unless another query of the request on the same
// type still matches it. Creates nothing matches are not sent at all.
func (s *Server) handleQueryUpdates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lastUpdate, err := parseLastUpdate(r)
	if err != nil {
		writeError(w, err.Error())
		return
	}
	queries, err := parseQueries(r)
	if err != nil {
		writeError(w, err.Error())
		return
	}
	filters := make([]*filter.Filter, len(queries))
	for i, q := range queries {
		if filters[i], err = compile(q); err != nil {
			writeError(w, err.Error())
			return
		}
	}
	// matched reports whether any query on typ keeps e in the client's cache.
	matched := func(typ string, e *types.Entity) bool {
		for i, q := range queries {
			if q.Type == typ && (filters[i] == nil || filters[i].Match(e)) {
				return true
			}
		}
		return false
	}

	resp := &wire.Response{LastUpdate: lastUpdate}
	for i, q := range queries {
		changes, err := s.cfg.Store.Changes(ctx, lastUpdate, q.Type)
		if err != nil {
			storeErrorToReply(w, err)
			return
		}
		for _, c := range changes {
			u := c.Update(q.ID())
			if f := filters[i]; f != nil && u.Entity != nil && !f.Match(u.Entity) {
				if u.Kind == wire.KindCreate || matched(q.Type, u.Entity) {
					continue
				}
				u.Kind, u.Entity = wire.KindDelete, nil
			}
			resp.Updates = append(resp.Updates, u)
		}
	}
	seq, err := s.cfg.Store.LastSeq(ctx)
	if err != nil {
		storeErrorToReply(w, err)
		return
	}
	resp.LastUpdate = max(resp.LastUpdate, seq)
	writeResponse(w, resp)
}

// handleQuery evaluates each query against the stored entities and returns
// the result sets keyed by query ID. No deltas are sent.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lastUpdate, err := parseLastUpdate(r)
	if err != nil {
		writeError(w, err.Error())
		return
	}
	queries, err := parseQueries(r)
	if err != nil {
		writeError(w, err.Error())
		return
	}
	sets := make(map[string]wire.QueryResult, len(queries))
	for _, q := range queries {
		f, err := compile(q)
		if err != nil {
			writeError(w, err.Error())
			return
		}
		list, err := s.cfg.Store.List(ctx, q.Type)
		if err != nil {
			storeErrorToReply(w, err)
			return
		}
		if f != nil {
			list = f.Apply(list)
		}
		if list == nil {
			list = []*types.Entity{}
		}
		data, err := json.Marshal(list)
		if err != nil {
			storeErrorToReply(w, err)
			return
		}
		sets[q.ID()] = wire.QueryResult{Type: q.Type, Entities: data}
	}
	aux, err := json.Marshal(sets)
	if err != nil {
		storeErrorToReply(w, err)
		return
	}
	writeResponse(w, &wire.Response{LastUpdate: lastUpdate, AuxiliaryData: aux})
}

func compile(q types.Query) (*filter.Filter, error) {
	if q.Type == "" {
		return nil, fmt.Errorf("query has no type")
	}
	if q.Filter == "" {
		return nil, nil
	}
	return filter.Compile(q.Filter)
}
