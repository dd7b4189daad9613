package storage

import (
	"context"
	"testing"

	"github.com/hoanghai1803/haak/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_SetOverwritesAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddUser(ctx, "b@x.com", false))

	prefs := models.Preferences{
		Temperature: "Kelvin",
		Pressure:    "PSI",
		Theme:       "Dark",
		Timeframe:   "Month",
	}
	require.NoError(t, store.SetSettings(ctx, "b@x.com", prefs))

	got, err := store.GetSettings(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, prefs.Values(), got)
}

func TestGetSettings_MissingKeysOmitted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.KV().Set(ctx, "settings:c@x.com:theme", "Dark"))

	got, err := store.GetSettings(ctx, "c@x.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dark"}, got)
}

func TestGetSettings_UnknownUser(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetSettings(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPreferences_MissingKeysUseDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.KV().Set(ctx, "settings:c@x.com:theme", "Dark"))

	got, err := store.Preferences(ctx, "c@x.com")
	require.NoError(t, err)
	assert.Equal(t, models.Preferences{Temperature: "Celsius", Pressure: "Bar", Theme: "Dark", Timeframe: "Week"}, got)
}
