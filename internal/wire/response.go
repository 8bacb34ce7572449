package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/matthewbaird/entitygrid/internal/registry"
	"github.com/matthewbaird/entitygrid/internal/types"
)

// Update is one decoded change. Entity is nil exactly when Kind is delete.
type Update struct {
	QueryID         string
	QueryLastUpdate int64
	Kind            UpdateKind
	EntityID        int64
	EntityType      string
	Entity          *types.Entity
}

// Response is a decoded reply.
type Response struct {
	LastUpdate     int64
	Updates        []Update
	ResponseEntity *types.Entity
	AuxiliaryData  json.RawMessage
}

// ParseErrorBody reports whether body is an application error reply and
// returns its message: the second ":"-separated segment.
func ParseErrorBody(body []byte) (string, bool) {
	s := string(body)
	if !strings.HasPrefix(s, ErrorPrefix) {
		return "", false
	}
	return strings.Split(s, ":")[1], true
}

// ErrorBody builds an application error reply. Colons in msg are replaced so
// the message survives ParseErrorBody.
func ErrorBody(msg string) []byte {
	return []byte(ErrorPrefix + strings.ReplaceAll(msg, ":", " -"))
}

// DecodeResponse decodes a JSON reply body, materializing every entity
// through the registry.
func DecodeResponse(body []byte, reg *registry.Registry) (*Response, error) {
	var raw RawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return Decode(&raw, reg)
}

// Decode converts a raw reply into typed updates.
func Decode(raw *RawResponse, reg *registry.Registry) (*Response, error) {
	resp := &Response{
		LastUpdate:    raw.LastUpdate,
		Updates:       make([]Update, 0, len(raw.Updates)),
		AuxiliaryData: raw.AjaxResponse,
	}
	for i, ru := range raw.Updates {
		u, err := decodeUpdate(ru, reg)
		if err != nil {
			return nil, fmt.Errorf("update %d: %w", i, err)
		}
		resp.Updates = append(resp.Updates, u)
	}
	if raw.ResponseEntityType != "" && !isNull(raw.ResponseEntity) {
		data, err := unwrapString(raw.ResponseEntity)
		if err != nil {
			return nil, fmt.Errorf("response entity: %w", err)
		}
		e, err := reg.MaterializeJSON(raw.ResponseEntityType, data)
		if err != nil {
			return nil, fmt.Errorf("response entity: %w", err)
		}
		resp.ResponseEntity = e
	}
	return resp, nil
}

func decodeUpdate(ru RawUpdate, reg *registry.Registry) (Update, error) {
	kind, err := ParseUpdateKind(ru.UpdateType)
	if err != nil {
		return Update{}, err
	}
	u := Update{
		QueryID:         ru.QueryID,
		QueryLastUpdate: ru.QueryLastUpdate,
		Kind:            kind,
		EntityID:        ru.EntityID,
		EntityType:      ru.EntityType,
	}
	hasEntity := !isNull(ru.Entity)
	switch {
	case kind == KindDelete && hasEntity:
		return Update{}, errors.New("delete update carries an entity")
	case kind != KindDelete && !hasEntity:
		return Update{}, fmt.Errorf("%s update has no entity", kind)
	case kind == KindDelete:
		return u, nil
	}
	data, err := unwrapString(ru.Entity)
	if err != nil {
		return Update{}, err
	}
	e, err := reg.MaterializeJSON(ru.EntityType, data)
	if err != nil {
		return Update{}, err
	}
	if e.ID <= 0 {
		e.ID = ru.EntityID
	}
	u.Entity = e
	return u, nil
}

// Encode converts a typed reply into its raw form.
func Encode(resp *Response) (*RawResponse, error) {
	raw := &RawResponse{
		LastUpdate:   resp.LastUpdate,
		Updates:      make([]RawUpdate, 0, len(resp.Updates)),
		AjaxResponse: resp.AuxiliaryData,
	}
	for _, u := range resp.Updates {
		ru, err := EncodeUpdate(u)
		if err != nil {
			return nil, err
		}
		raw.Updates = append(raw.Updates, ru)
	}
	if resp.ResponseEntity != nil {
		data, err := json.Marshal(resp.ResponseEntity)
		if err != nil {
			return nil, fmt.Errorf("encode response entity: %w", err)
		}
		raw.ResponseEntityType = resp.ResponseEntity.Type
		raw.ResponseEntity = data
	}
	return raw, nil
}

// EncodeUpdate converts one typed update into its raw form.
func EncodeUpdate(u Update) (RawUpdate, error) {
	ru := RawUpdate{
		QueryID:         u.QueryID,
		QueryLastUpdate: u.QueryLastUpdate,
		UpdateType:      string(u.Kind),
		EntityID:        u.EntityID,
		EntityType:      u.EntityType,
	}
	if u.Kind != KindDelete {
		if u.Entity == nil {
			return RawUpdate{}, fmt.Errorf("encode %s update for %s %d: no entity", u.Kind, u.EntityType, u.EntityID)
		}
		data, err := json.Marshal(u.Entity)
		if err != nil {
			return RawUpdate{}, fmt.Errorf("encode update: %w", err)
		}
		ru.Entity = data
	}
	return ru, nil
}

// EncodeResponse marshals a typed reply to its JSON body.
func EncodeResponse(resp *Response) ([]byte, error) {
	raw, err := Encode(resp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

// DecodeQueryResults decodes the AjaxResponse of a Query round trip: an
// object mapping each query ID to {"Type": ..., "Entities": [...]}.
func DecodeQueryResults(resp *Response, reg *registry.Registry) (map[string][]*types.Entity, error) {
	if isNull(resp.AuxiliaryData) {
		return map[string][]*types.Entity{}, nil
	}
	var sets map[string]QueryResult
	if err := json.Unmarshal(resp.AuxiliaryData, &sets); err != nil {
		return nil, fmt.Errorf("decode query results: %w", err)
	}
	out := make(map[string][]*types.Entity, len(sets))
	for id, set := range sets {
		list, err := reg.MaterializeJSONList(set.Type, set.Entities)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", id, err)
		}
		out[id] = list
	}
	return out, nil
}

// QueryResult is one result set of a Query reply.
type QueryResult struct {
	Type     string          `json:"Type"`
	Entities json.RawMessage `json:"Entities"`
}

func isNull(data json.RawMessage) bool {
	d := bytes.TrimSpace(data)
	return len(d) == 0 || bytes.Equal(d, []byte("null"))
}

// unwrapString returns the JSON held by a JSON string, or data unchanged when
// it is not a string.
func unwrapString(data json.RawMessage) ([]byte, error) {
	d := bytes.TrimSpace(data)
	if len(d) == 0 || d[0] != '"' {
		return d, nil
	}
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return nil, err
	}
	return []byte(s), nil
}
