package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hoanghai1803/haak/internal/models"
	"github.com/hoanghai1803/haak/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestKV(t *testing.T) storage.KV {
	t.Helper()

	db, err := storage.OpenDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.RunMigrations(db))

	return storage.NewSQLiteKV(db)
}

func newTestManager(t *testing.T) (*Manager, storage.KV) {
	t.Helper()

	kv := newTestKV(t)
	return NewManager(kv, testSecret, Options{TTL: time.Hour}), kv
}

// roundTrip commits s and returns a request carrying the resulting cookies.
func roundTrip(t *testing.T, m *Manager, s *Session) *http.Request {
	t.Helper()

	w := httptest.NewRecorder()
	require.NoError(t, m.Commit(context.Background(), w, s))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestLoad_NoCookieIsAnonymous(t *testing.T) {
	m, _ := newTestManager(t)

	s, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.False(t, s.Authenticated())
	_, ok := s.PendingLogin()
	assert.False(t, ok)
}

func TestCommit_PersistsAcrossRequests(t *testing.T) {
	m, _ := newTestManager(t)

	s, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	s.SetPendingLogin(models.LoginChallenge{Email: "a@x.com", Challenge: "c1"})

	r := roundTrip(t, m, s)

	loaded, err := m.Load(r)
	require.NoError(t, err)
	lc, ok := loaded.PendingLogin()
	require.True(t, ok)
	assert.Equal(t, "a@x.com", lc.Email)
	assert.Equal(t, "c1", lc.Challenge)
	assert.False(t, loaded.Authenticated())
}

func TestAuthenticate_ClearsPendingLogin(t *testing.T) {
	m, _ := newTestManager(t)

	s := &Session{}
	s.SetPendingLogin(models.LoginChallenge{Email: "a@x.com", Challenge: "c1"})
	s.Authenticate("a@x.com")

	loaded, err := m.Load(roundTrip(t, m, s))
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", loaded.Email())
	_, ok := loaded.PendingLogin()
	assert.False(t, ok)
}

func TestCommit_UnmodifiedSetsNoCookie(t *testing.T) {
	m, _ := newTestManager(t)

	w := httptest.NewRecorder()
	require.NoError(t, m.Commit(context.Background(), w, &Session{}))
	assert.Empty(t, w.Result().Cookies())
}

func TestPurge_DeletesPayloadAndCookie(t *testing.T) {
	m, kv := newTestManager(t)

	s := &Session{}
	s.Authenticate("a@x.com")
	r := roundTrip(t, m, s)

	loaded, err := m.Load(r)
	require.NoError(t, err)
	id := loaded.id
	require.NotEmpty(t, id)

	loaded.Purge()
	w := httptest.NewRecorder()
	require.NoError(t, m.Commit(context.Background(), w, loaded))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	ok, err := kv.Exists(context.Background(), "session:"+id)
	require.NoError(t, err)
	assert.False(t, ok)

	// The old cookie no longer resolves to anything.
	again, err := m.Load(r)
	require.NoError(t, err)
	assert.False(t, again.Authenticated())
}

func TestLoad_TamperedCookieIsAnonymous(t *testing.T) {
	m, _ := newTestManager(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "haak_session", Value: "forged"})

	s, err := m.Load(r)
	require.NoError(t, err)
	assert.False(t, s.Authenticated())
}

func TestLoad_CookieFromOtherSecretRejected(t *testing.T) {
	m, kv := newTestManager(t)
	other := NewManager(kv, []byte("ffffffffffffffffffffffffffffffff"), Options{TTL: time.Hour})

	s := &Session{}
	s.Authenticate("a@x.com")
	r := roundTrip(t, other, s)

	loaded, err := m.Load(r)
	require.NoError(t, err)
	assert.False(t, loaded.Authenticated())
}

func TestCommit_CookieAttributes(t *testing.T) {
	kv := newTestKV(t)
	m := NewManager(kv, testSecret, Options{CookieName: "sid", TTL: time.Hour, Secure: true})

	s := &Session{}
	s.Authenticate("a@x.com")
	w := httptest.NewRecorder()
	require.NoError(t, m.Commit(context.Background(), w, s))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "sid", c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
}

func TestAuthenticate_RotatesID(t *testing.T) {
	m, kv := newTestManager(t)
	ctx := context.Background()

	s := &Session{}
	s.SetPendingLogin(models.LoginChallenge{Email: "a@x.com", Challenge: "c1"})
	r := roundTrip(t, m, s)

	pending, err := m.Load(r)
	require.NoError(t, err)
	before := pending.id
	require.NotEmpty(t, before)

	pending.Authenticate("a@x.com")
	loaded, err := m.Load(roundTrip(t, m, pending))
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", loaded.Email())
	assert.NotEqual(t, before, loaded.id)

	ok, err := kv.Exists(ctx, "session:"+before)
	require.NoError(t, err)
	assert.False(t, ok)

	// A cookie captured before login stays anonymous.
	stale, err := m.Load(r)
	require.NoError(t, err)
	assert.False(t, stale.Authenticated())

	// Later writes keep the rotated id.
	loaded.SetPendingLogin(models.LoginChallenge{Email: "a@x.com", Challenge: "c2"})
	after, err := m.Load(roundTrip(t, m, loaded))
	require.NoError(t, err)
	assert.Equal(t, loaded.id, after.id)
}
