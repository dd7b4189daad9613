package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/hoanghai1803/haak/internal/models"
)

// UserExists reports whether a user record exists for email.
func (s *Store) UserExists(ctx context.Context, email string) (bool, error) {
	ok, err := s.kv.Exists(ctx, userKey(email))
	if err != nil {
		return false, fmt.Errorf("checking user %q: %w", email, err)
	}
	return ok, nil
}

// UserIsAdmin reports whether the user record of email carries the admin
// marker. A missing user is not an admin.
func (s *Store) UserIsAdmin(ctx context.Context, email string) (bool, error) {
	v, err := s.kv.Get(ctx, userKey(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("getting user %q: %w", email, err)
	}
	return v == models.AdminMarker, nil
}

// AddUser creates the user record of email together with the default
// preferences in one write.
func (s *Store) AddUser(ctx context.Context, email string, admin bool) error {
	if err := s.kv.MSet(ctx, newUserPairs(email, admin)); err != nil {
		return fmt.Errorf("adding user %q: %w", email, err)
	}
	return nil
}

// newUserPairs returns the keys written for a new user: the user record and
// the default preferences.
func newUserPairs(email string, admin bool) map[string]string {
	role := ""
	if admin {
		role = models.AdminMarker
	}

	pairs := map[string]string{userKey(email): role}
	keys := settingsKeys(email)
	for i, v := range models.DefaultPreferences().Values() {
		pairs[keys[i]] = v
	}
	return pairs
}

// EnsureAdmin creates email as an admin unless a user record already
// exists. It reports whether a user was created.
func (s *Store) EnsureAdmin(ctx context.Context, email string) (bool, error) {
	exists, err := s.UserExists(ctx, email)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := s.AddUser(ctx, email, true); err != nil {
		return false, err
	}
	return true, nil
}

// CreateRegistration records a pending registration of email under token.
// The record expires after RegistrationTTL.
func (s *Store) CreateRegistration(ctx context.Context, email, token string) error {
	if err := s.kv.SetEX(ctx, registerKey(token), email, RegistrationTTL); err != nil {
		return fmt.Errorf("creating registration for %q: %w", email, err)
	}
	return nil
}

// CompleteRegistration turns the registration stored under token into a user
// with default preferences and returns its email. Removing the record and
// creating the user happen in one transaction, so a failure leaves the
// registration usable and a token completes at most once. Unknown, used and
// expired tokens yield ErrNotFound.
func (s *Store) CompleteRegistration(ctx context.Context, token string) (string, error) {
	email, err := s.kv.GetDelMSet(ctx, registerKey(token), func(email string) map[string]string {
		return newUserPairs(email, false)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("completing registration: %w", err)
	}
	return email, nil
}
