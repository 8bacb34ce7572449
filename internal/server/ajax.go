package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

// AjaxHandler serves one controller action of the Ajax round trip. data is
// the posted dataJson; the result is returned to the client as AjaxResponse.
// Ajax replies carry no deltas, so a client can call them before it knows
// the entity types.
type AjaxHandler func(ctx context.Context, data json.RawMessage) (any, error)

// HandleAjax registers a handler for controller/action, replacing any
// previous one.
func (s *Server) HandleAjax(controller, action string, h AjaxHandler) {
	s.ajax[controller+"/"+action] = h
}

func (s *Server) handleAjax(w http.ResponseWriter, r *http.Request) {
	lastUpdate, err := parseLastUpdate(r)
	if err != nil {
		writeError(w, err.Error())
		return
	}
	controller, action := r.PostFormValue(wire.FieldController), r.PostFormValue(wire.FieldAction)
	h, ok := s.ajax[controller+"/"+action]
	if !ok {
		writeError(w, fmt.Sprintf("unknown action %s/%s", controller, action))
		return
	}
	data := json.RawMessage(r.PostFormValue(wire.FieldDataJSON))
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	result, err := h(r.Context(), data)
	if err != nil {
		log.Printf("server: ajax %s/%s: %v", controller, action, err)
		writeError(w, err.Error())
		return
	}
	aux, err := json.Marshal(result)
	if err != nil {
		storeErrorToReply(w, err)
		return
	}
	writeResponse(w, &wire.Response{LastUpdate: lastUpdate, AuxiliaryData: aux})
}

func (s *Server) describeSchema(context.Context, json.RawMessage) (any, error) {
	if s.cfg.Schema == nil {
		return schema.Description{}, nil
	}
	return s.cfg.Schema.Description(), nil
}
