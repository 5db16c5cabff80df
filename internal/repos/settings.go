package repos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/keepsakehq/keepsake-go/internal/errs"
	"github.com/keepsakehq/keepsake-go/internal/models"
)

const settingsPath = "/api/users/me/settings"

// Settings is the per-user settings singleton repository. The record id is
// the user id; the remote endpoint addresses the authenticated user.
type Settings struct {
	c collection[models.UserSettings, *models.UserSettings]
}

func NewSettings(d Deps) *Settings {
	return &Settings{c: collection[models.UserSettings, *models.UserSettings]{
		deps:  d,
		table: models.EntityUser,
		touch: func(u *models.UserSettings, now int64) {
			u.UpdatedAt = now
		},
	}}
}

// Get returns the user's settings, offline-first: the cached copy is served
// immediately and refreshed from the server when online, unless a local
// edit is still pending.
func (r *Settings) Get(ctx context.Context, userID string) (*models.UserSettings, error) {
	local, err := r.c.get(userID)
	if err != nil && !errs.HasCode(err, errs.CodeNotFound) {
		return nil, err
	}
	if !r.c.deps.Monitor.Online() {
		if local == nil {
			return nil, errs.ErrNotFound
		}
		return local, nil
	}

	raw, reqErr := r.c.deps.Gateway.Get(ctx, settingsPath)
	if reqErr != nil {
		r.c.deps.Log.Warn().Err(reqErr).Msg("settings refresh failed, serving cache")
		if local == nil {
			return nil, errs.ErrNotFound
		}
		return local, nil
	}

	var fetched models.UserSettings
	if err := json.Unmarshal(raw, &fetched); err != nil {
		if local == nil {
			return nil, errs.Wrap(errs.CodeAPI, "decode settings", err)
		}
		return local, nil
	}
	fetched.ID = userID

	if local != nil && local.SyncStatus.Unconfirmed() {
		return local, nil
	}
	fetched.SyncStatus = models.StatusSynced
	fetched.LastSync = time.Now().Unix()
	rec, err := r.c.encode(&fetched)
	if err != nil {
		return nil, err
	}
	if err := r.c.deps.Store.Put(r.c.table, rec); err != nil {
		return nil, err
	}
	return r.c.get(userID)
}

// Update mutates the cached settings and queues the remote patch. When no
// cached copy exists yet one is created with the user's id.
func (r *Settings) Update(_ context.Context, userID string, mutate func(*models.UserSettings)) (*models.UserSettings, error) {
	_, err := r.c.deps.Store.Get(r.c.table, userID)
	if errs.HasCode(err, errs.CodeNotFound) {
		seed := &models.UserSettings{ID: userID}
		if err := r.c.create(seed); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return r.c.update(userID, mutate)
}
