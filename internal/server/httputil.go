package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/matthewbaird/entitygrid/internal/registry"
	"github.com/matthewbaird/entitygrid/internal/store"
	"github.com/matthewbaird/entitygrid/internal/types"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON encode error: %v", err)
	}
}

// writeResponse writes a protocol reply.
func writeResponse(w http.ResponseWriter, resp *wire.Response) {
	body, err := wire.EncodeResponse(resp)
	if err != nil {
		log.Printf("server: encode response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// writeError writes an application error reply. Application errors travel
// with status 200; any other status reads as a transport failure.
func writeError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(wire.ErrorBody(msg))
}

// storeErrorToReply maps store errors to error replies.
func storeErrorToReply(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNoID), errors.Is(err, types.ErrMissingType):
		writeError(w, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, "internal server error")
	}
}

// parseLastUpdate reads the mandatory, non-negative lastUpdate field.
func parseLastUpdate(r *http.Request) (int64, error) {
	raw := r.PostFormValue(wire.FieldLastUpdate)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid lastUpdate %q", raw)
	}
	return n, nil
}

// parseEntity materializes the entityJson field as the posted type.
func (s *Server) parseEntity(r *http.Request) (*types.Entity, error) {
	typ := r.PostFormValue(wire.FieldType)
	if typ == "" {
		return nil, errors.New("missing type")
	}
	e, err := s.cfg.Registry.MaterializeJSON(typ, []byte(r.PostFormValue(wire.FieldEntityJSON)))
	if errors.Is(err, registry.ErrUnknownType) {
		return nil, fmt.Errorf("unknown entity type %s", typ)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid entity: %w", err)
	}
	return e, nil
}

// parseQueries reads the queries field.
func parseQueries(r *http.Request) ([]types.Query, error) {
	var qs []types.Query
	if err := json.Unmarshal([]byte(r.PostFormValue(wire.FieldQueries)), &qs); err != nil {
		return nil, fmt.Errorf("invalid queries: %w", err)
	}
	if len(qs) == 0 {
		return nil, errors.New("no queries")
	}
	return qs, nil
}
