package storage

import (
	"context"
	"fmt"

	"github.com/hoanghai1803/haak/internal/models"
)

// GetSettings reads the four preference values of email in one batch and
// returns them in order: temperature, pressure, theme, timeframe. Missing
// keys are left out, so the result may be shorter than four.
func (s *Store) GetSettings(ctx context.Context, email string) ([]string, error) {
	vals, err := s.kv.MGet(ctx, settingsKeys(email)...)
	if err != nil {
		return nil, fmt.Errorf("getting settings of %q: %w", email, err)
	}

	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

// Preferences reads the preferences of email for display. A missing key
// falls back to its default so fields never shift position.
func (s *Store) Preferences(ctx context.Context, email string) (models.Preferences, error) {
	vals, err := s.kv.MGet(ctx, settingsKeys(email)...)
	if err != nil {
		return models.Preferences{}, fmt.Errorf("getting preferences of %q: %w", email, err)
	}

	out := models.DefaultPreferences().Values()
	for i, v := range vals {
		if v != nil && i < len(out) {
			out[i] = *v
		}
	}
	return models.PreferencesFromValues(out), nil
}

// SetSettings overwrites all four preference values of email in one write.
// The caller is responsible for validating prefs.
func (s *Store) SetSettings(ctx context.Context, email string, prefs models.Preferences) error {
	keys := settingsKeys(email)
	pairs := make(map[string]string, len(keys))
	for i, v := range prefs.Values() {
		pairs[keys[i]] = v
	}

	if err := s.kv.MSet(ctx, pairs); err != nil {
		return fmt.Errorf("setting settings of %q: %w", email, err)
	}
	return nil
}
