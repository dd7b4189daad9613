package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/hoanghai1803/haak/internal/session"
	"github.com/hoanghai1803/haak/internal/web"
)

// errBadBody is returned by readEmail for an undecodable request body.
var errBadBody = errors.New("invalid request body")

// maxBodyBytes caps request bodies; an email address is tiny.
const maxBodyBytes = 4 << 10

// readEmail extracts the "email" field from a JSON body, or from a
// form-encoded body when the request says so. A missing field yields "".
func readEmail(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return "", fmt.Errorf("%w: %v", errBadBody, err)
		}
		return strings.TrimSpace(r.PostFormValue("email")), nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return "", fmt.Errorf("%w: %v", errBadBody, err)
		}
		return strings.TrimSpace(r.PostFormValue("email")), nil
	}

	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", errBadBody, err)
	}
	return strings.TrimSpace(body.Email), nil
}

// writeResult translates a web.Result into the HTTP response.
func writeResult(w http.ResponseWriter, r *http.Request, pages *web.Renderer, res web.Result) {
	switch {
	case res.Kind == web.KindRedirect:
		http.Redirect(w, r, res.Location, res.Status)

	case res.Page != "":
		var buf bytes.Buffer
		if err := pages.Page(&buf, res.Page); err != nil {
			serverError(w, "failed to render page", err, "page", res.Page)
			return
		}
		writeHTML(w, res.Status, buf.Bytes())

	case res.HTML != nil:
		writeHTML(w, res.Status, res.HTML)

	default:
		writeText(w, res.Status, res.Text)
	}
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeText writes a plain text body. An empty text sends only the status.
func writeText(w http.ResponseWriter, status int, text string) {
	if text == "" {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}

// serverError logs err with msg and answers 500.
func serverError(w http.ResponseWriter, msg string, err error, attrs ...any) {
	slog.Error(msg, append(attrs, "error", err)...)
	writeText(w, http.StatusInternalServerError, "Internal Server Error")
}

// sessionFunc is a request handler that works on the caller's session and
// returns the outcome rather than writing it.
type sessionFunc func(r *http.Request, sess *session.Session) (web.Result, error)

// withSession loads the session, runs fn, commits the session and writes the
// result. Errors from the store are logged and answered with 500.
func withSession(sessions *session.Manager, pages *web.Renderer, fn sessionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sess, err := sessions.Load(r)
		if err != nil {
			serverError(w, "failed to load session", err)
			return
		}

		res, err := fn(r, sess)
		if err != nil {
			serverError(w, "request failed", err, "path", r.URL.Path)
			return
		}

		if err := sessions.Commit(ctx, w, sess); err != nil {
			serverError(w, "failed to save session", err)
			return
		}

		writeResult(w, r, pages, res)
	}
}
