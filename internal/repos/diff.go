package repos

import (
	"encoding/json"
	"reflect"

	"github.com/keepsakehq/keepsake-go/internal/errs"
)

// metaFields never belong in a replay payload: they are local bookkeeping or
// server-computed.
var metaFields = map[string]bool{
	"id":         true,
	"syncStatus": true,
	"lastSync":   true,
	"createdAt":  true,
	"updatedAt":  true,
}

// entityMap round-trips an entity through JSON into a generic map so fields
// can be compared structurally, array fields included.
func entityMap(e any) (map[string]any, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalid, "marshal entity", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errs.Wrap(errs.CodeInvalid, "unmarshal entity", err)
	}
	return m, nil
}

// diffFields returns the business fields that differ between old and next.
// An empty result means the update is a no-op and must not touch the store
// or the queue.
func diffFields(old, next any) (map[string]any, error) {
	oldM, err := entityMap(old)
	if err != nil {
		return nil, err
	}
	nextM, err := entityMap(next)
	if err != nil {
		return nil, err
	}

	delta := make(map[string]any)
	for k, nv := range nextM {
		if metaFields[k] {
			continue
		}
		if ov, ok := oldM[k]; !ok || !reflect.DeepEqual(ov, nv) {
			delta[k] = nv
		}
	}
	// Fields cleared to their zero value drop out of the JSON under
	// omitempty; surface them as explicit nulls.
	for k := range oldM {
		if metaFields[k] {
			continue
		}
		if _, ok := nextM[k]; !ok {
			delta[k] = nil
		}
	}
	return delta, nil
}

// createPayload builds the replay payload for a create: the business fields
// with the client-generated id carried as clientId, so a retried create is
// an idempotent upsert server-side.
func createPayload(e any) (json.RawMessage, error) {
	m, err := entityMap(e)
	if err != nil {
		return nil, err
	}
	m["clientId"] = m["id"]
	delete(m, "id")
	delete(m, "syncStatus")
	delete(m, "lastSync")

	raw, err := json.Marshal(m)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalid, "encode create payload", err)
	}
	return raw, nil
}
