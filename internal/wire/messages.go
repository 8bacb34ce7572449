// Package wire defines the HTTP delta-sync protocol: actions, form fields,
// the raw reply shape and its decoding into typed updates.
package wire

import (
	"encoding/json"
	"fmt"
)

// Actions, appended to the controller base URI.
const (
	ActionAjax            = "Ajax"
	ActionCreateEntity    = "CreateEntity"
	ActionUpdateEntity    = "UpdateEntity"
	ActionDeleteEntity    = "DeleteEntity"
	ActionGetQueryUpdates = "GetQueryUpdates"
	ActionGetAllUpdates   = "GetAllUpdates"
	ActionQuery           = "Query"
)

// Form field names.
const (
	FieldLastUpdate = "lastUpdate"
	FieldController = "controller"
	FieldAction     = "action"
	FieldDataJSON   = "dataJson"
	FieldType       = "type"
	FieldEntityJSON = "entityJson"
	FieldQueries    = "queries"
)

// ErrorPrefix starts every application-level error reply.
const ErrorPrefix = "ERROR:"

// UnexpectedError is reported to failure continuations when the transport
// fails or the reply cannot be understood.
const UnexpectedError = "An unexpected error has occurred."

// UpdateKind is the change carried by one update.
type UpdateKind string

const (
	KindCreate UpdateKind = "create"
	KindUpdate UpdateKind = "update"
	KindDelete UpdateKind = "delete"
)

// ParseUpdateKind accepts the wire spellings of an update kind.
func ParseUpdateKind(s string) (UpdateKind, error) {
	switch UpdateKind(s) {
	case KindCreate, KindUpdate, KindDelete:
		return UpdateKind(s), nil
	}
	return "", fmt.Errorf("unknown update type %q", s)
}

// ── Raw reply ───────────────────────────────────────────────────────────────

// RawUpdate is one element of the Updates array as sent by the server.
type RawUpdate struct {
	QueryID         string          `json:"QueryId"`
	QueryLastUpdate int64           `json:"QueryLastUpdate"`
	UpdateType      string          `json:"UpdateType"`
	EntityID        int64           `json:"EntityId"`
	EntityType      string          `json:"EntityType"`
	Entity          json.RawMessage `json:"Entity,omitempty"`
}

// RawResponse is the JSON body of a successful reply. ResponseEntity may be
// an object or a string holding the object's JSON.
type RawResponse struct {
	LastUpdate         int64           `json:"lastUpdate"`
	Updates            []RawUpdate     `json:"Updates"`
	ResponseEntityType string          `json:"ResponseEntityType,omitempty"`
	ResponseEntity     json.RawMessage `json:"ResponseEntity,omitempty"`
	AjaxResponse       json.RawMessage `json:"AjaxResponse,omitempty"`
}
