package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/hoanghai1803/haak/internal/auth"
	"github.com/hoanghai1803/haak/internal/mail"
	"github.com/hoanghai1803/haak/internal/session"
	"github.com/hoanghai1803/haak/internal/storage"
	"github.com/hoanghai1803/haak/internal/web"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// outbox collects sent mail.
type outbox struct {
	mu   sync.Mutex
	msgs []mail.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

var challengeRe = regexp.MustCompile(`\?c=([A-Za-z0-9_-]+)`)

// lastChallenge returns the challenge in the most recent mail to addr.
func (o *outbox) lastChallenge(t *testing.T, addr string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].To != addr {
			continue
		}
		m := challengeRe.FindStringSubmatch(o.msgs[i].HTML)
		require.NotNil(t, m, "mail to %s carries no challenge: %s", addr, o.msgs[i].HTML)
		return m[1]
	}
	require.FailNowf(t, "no mail sent", "to %s", addr)
	return ""
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}

// newTestStore creates a store over an in-memory SQLite KV with migrations
// applied. The database is closed when the test completes.
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	db, err := storage.OpenDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.RunMigrations(db))

	return storage.NewStore(storage.NewSQLiteKV(db))
}

// newTestDeps wires every endpoint dependency over an in-memory store.
func newTestDeps(t *testing.T) (Deps, *outbox) {
	t.Helper()

	store := newTestStore(t)
	box := &outbox{}

	composer, err := mail.NewComposer("weather.example.com")
	require.NoError(t, err)
	pages, err := web.NewRenderer()
	require.NoError(t, err)

	return Deps{
		Sessions: session.NewManager(store.KV(), testSecret, session.Options{}),
		Flow:     auth.NewFlow(store, box, composer),
		Store:    store,
		Pages:    pages,
	}, box
}

// browser replays the session cookie across handler calls.
type browser struct {
	t       *testing.T
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T) *browser {
	return &browser{t: t, cookies: map[string]*http.Cookie{}}
}

// do serves r with h after attaching the stored cookies, then records any
// cookies the response sets or expires.
func (b *browser) do(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	for _, c := range b.cookies {
		r.AddCookie(c)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return w
}

func body(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	data, err := io.ReadAll(w.Result().Body)
	require.NoError(t, err)
	return string(data)
}
