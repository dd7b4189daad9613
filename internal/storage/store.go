package storage

import (
	"context"
	"time"
)

// Store exposes the domain operations of the weather station on top of a KV.
type Store struct {
	kv KV
}

// NewStore creates a Store backed by the given KV.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// KV returns the underlying key-value store.
func (s *Store) KV() KV {
	return s.kv
}

// Close closes the underlying KV.
func (s *Store) Close() error {
	return s.kv.Close()
}

// RegistrationTTL is how long an emailed registration link stays valid.
const RegistrationTTL = 3600 * time.Second

func userKey(email string) string {
	return "user:" + email
}

func registerKey(token string) string {
	return "register:" + token
}

// settingsKeys returns the four preference keys of a user in tuple order:
// temperature, pressure, theme, timeframe.
func settingsKeys(email string) []string {
	return []string{
		"settings:" + email + ":units:temperature",
		"settings:" + email + ":units:pressure",
		"settings:" + email + ":theme",
		"settings:" + email + ":timeframe",
	}
}

// Ping checks that the store answers.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.kv.Exists(ctx, "ping")
	return err
}
