package repos

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepsakehq/keepsake-go/internal/models"
)

func TestDiffFieldsIgnoresMeta(t *testing.T) {
	old := &models.Memory{ID: "m1", Title: "Trip", UpdatedAt: 1}
	next := &models.Memory{ID: "m1", Title: "Trip", UpdatedAt: 2}
	next.SyncStatus = models.StatusPending

	delta, err := diffFields(old, next)
	require.NoError(t, err)
	assert.Empty(t, delta, "meta and timestamp churn is not a business change")
}

func TestDiffFieldsArrays(t *testing.T) {
	old := &models.Memory{ID: "m1", Tags: []string{"beach"}}
	next := &models.Memory{ID: "m1", Tags: []string{"beach", "family"}}

	delta, err := diffFields(old, next)
	require.NoError(t, err)
	require.Contains(t, delta, "tags")
	assert.Len(t, delta, 1)
}

func TestDiffFieldsClearedOmitempty(t *testing.T) {
	old := &models.Memory{ID: "m1", Title: "Trip", Location: "Lisbon"}
	next := &models.Memory{ID: "m1", Title: "Trip"}

	delta, err := diffFields(old, next)
	require.NoError(t, err)
	require.Contains(t, delta, "location")
	assert.Nil(t, delta["location"], "cleared fields surface as explicit nulls")
}

func TestCreatePayloadCarriesClientID(t *testing.T) {
	m := &models.Memory{ID: "temp-1", UserID: "u1", Title: "Trip"}
	raw, err := createPayload(m)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "temp-1", payload["clientId"])
	assert.NotContains(t, payload, "id")
	assert.NotContains(t, payload, "syncStatus")
	assert.NotContains(t, payload, "lastSync")
	assert.Equal(t, "Trip", payload["title"])
}
