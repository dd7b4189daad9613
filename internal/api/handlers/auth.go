package handlers

import (
	"net/http"

	"github.com/hoanghai1803/haak/internal/session"
	"github.com/hoanghai1803/haak/internal/web"
)

// LoginPage handles GET /login.
func LoginPage(d Deps) http.HandlerFunc {
	return withSession(d.Sessions, d.Pages, func(r *http.Request, sess *session.Session) (web.Result, error) {
		return d.Flow.LoginPage(sess), nil
	})
}

// Login handles POST /login with a body of {"email": ...}.
func Login(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, err := readEmail(w, r)
		if err != nil {
			writeText(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		withSession(d.Sessions, d.Pages, func(r *http.Request, sess *session.Session) (web.Result, error) {
			return d.Flow.BeginLogin(r.Context(), sess, email)
		})(w, r)
	}
}

// PollLogin handles GET /poll_login. The login page polls it while the user
// opens the emailed link.
func PollLogin(d Deps) http.HandlerFunc {
	return withSession(d.Sessions, d.Pages, func(r *http.Request, sess *session.Session) (web.Result, error) {
		return d.Flow.Poll(sess), nil
	})
}

// VerifyLogin handles GET /verify_login?c=<challenge>.
func VerifyLogin(d Deps) http.HandlerFunc {
	return withSession(d.Sessions, d.Pages, func(r *http.Request, sess *session.Session) (web.Result, error) {
		return d.Flow.VerifyLogin(sess, r.URL.Query().Get("c")), nil
	})
}

// Logout handles GET /logout.
func Logout(d Deps) http.HandlerFunc {
	return withSession(d.Sessions, d.Pages, func(r *http.Request, sess *session.Session) (web.Result, error) {
		return d.Flow.Logout(sess), nil
	})
}

// Register handles /register with a body of {"email": ...}. Any method is
// accepted.
func Register(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, err := readEmail(w, r)
		if err != nil {
			writeText(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		withSession(d.Sessions, d.Pages, func(r *http.Request, sess *session.Session) (web.Result, error) {
			return d.Flow.BeginRegistration(r.Context(), sess, email)
		})(w, r)
	}
}

// VerifyRegister handles GET /verify_register?c=<challenge>.
func VerifyRegister(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := d.Flow.VerifyRegistration(r.Context(), r.URL.Query().Get("c"))
		if err != nil {
			serverError(w, "failed to verify registration", err)
			return
		}
		writeResult(w, r, d.Pages, res)
	}
}
