// Package auth implements passwordless login and admin-driven registration.
//
// Login: a registered user submits an email, receives a link carrying a
// random challenge, and opening the link in the same browser session
// completes the login. Registration: an admin submits an email, the owner
// receives a link, and opening it creates the user with default preferences.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/hoanghai1803/haak/internal/mail"
	"github.com/hoanghai1803/haak/internal/models"
	"github.com/hoanghai1803/haak/internal/session"
	"github.com/hoanghai1803/haak/internal/storage"
	"github.com/hoanghai1803/haak/internal/token"
	"github.com/hoanghai1803/haak/internal/web"
)

// Response texts shared with clients.
const (
	MsgCheckMail       = "Check your mail for login code"
	MsgInvalidEmail    = "Invalid email"
	MsgAlreadyExists   = "Email already registered"
	MsgMailUnavailable = "Could not send authentication mail"
)

// UserStore is the persistence the flows need.
type UserStore interface {
	UserExists(ctx context.Context, email string) (bool, error)
	UserIsAdmin(ctx context.Context, email string) (bool, error)
	CreateRegistration(ctx context.Context, email, token string) error
	CompleteRegistration(ctx context.Context, token string) (string, error)
}

var validate = validator.New()

// ValidEmail reports whether s is a syntactically valid email address.
func ValidEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

// Flow runs the login and registration flows.
type Flow struct {
	store    UserStore
	sender   mail.Sender
	composer *mail.Composer

	newChallenge func() string
}

// NewFlow creates a Flow.
func NewFlow(store UserStore, sender mail.Sender, composer *mail.Composer) *Flow {
	return &Flow{
		store:        store,
		sender:       sender,
		composer:     composer,
		newChallenge: token.New,
	}
}

// LoginPage shows the login form unless the session is already logged in.
func (f *Flow) LoginPage(sess *session.Session) web.Result {
	if sess.Authenticated() {
		return web.Redirect("/")
	}
	return web.OKPage(web.PageLogin)
}

// BeginLogin starts a login for email. Unknown addresses get the same answer
// as known ones so the response does not reveal who has an account.
func (f *Flow) BeginLogin(ctx context.Context, sess *session.Session, email string) (web.Result, error) {
	if sess.Authenticated() {
		return web.Redirect("/"), nil
	}

	if !ValidEmail(email) {
		return web.Reject(http.StatusUnprocessableEntity, MsgInvalidEmail), nil
	}

	exists, err := f.store.UserExists(ctx, email)
	if err != nil {
		return web.Result{}, err
	}
	if !exists {
		slog.Debug("login requested for unknown email")
		return web.OK(MsgCheckMail), nil
	}

	challenge := f.newChallenge()
	sess.SetPendingLogin(models.LoginChallenge{Email: email, Challenge: challenge})

	msg, err := f.composer.Login(email, challenge)
	if err != nil {
		return web.Result{}, fmt.Errorf("composing login mail: %w", err)
	}
	if err := f.sender.Send(ctx, msg); err != nil {
		slog.Error("failed to send login mail", "email", email, "error", err)
		return web.Reject(http.StatusInternalServerError, MsgMailUnavailable), nil
	}

	slog.Info("login challenge issued", "email", email)
	return web.OK(MsgCheckMail), nil
}

// VerifyLogin completes a pending login when challenge matches the one held
// by the session. A mismatch leaves the pending login in place so a later,
// correct link still works.
func (f *Flow) VerifyLogin(sess *session.Session, challenge string) web.Result {
	pending, ok := sess.PendingLogin()
	if !ok {
		return web.Redirect("/login")
	}

	if pending.Challenge != challenge {
		slog.Debug("login challenge mismatch", "email", pending.Email)
		return web.RejectPage(http.StatusUnauthorized, web.PageInvalidToken)
	}

	sess.Authenticate(pending.Email)
	slog.Info("user logged in", "email", pending.Email)
	return web.OKPage(web.PageVerified)
}

// BeginRegistration lets a logged-in admin invite email.
func (f *Flow) BeginRegistration(ctx context.Context, sess *session.Session, email string) (web.Result, error) {
	if !sess.Authenticated() {
		return web.Reject(http.StatusUnauthorized, ""), nil
	}
	admin, err := f.store.UserIsAdmin(ctx, sess.Email())
	if err != nil {
		return web.Result{}, err
	}
	if !admin {
		slog.Warn("registration attempted by non-admin", "email", sess.Email())
		return web.Reject(http.StatusUnauthorized, ""), nil
	}

	if !ValidEmail(email) {
		return web.Reject(http.StatusUnprocessableEntity, MsgInvalidEmail), nil
	}

	exists, err := f.store.UserExists(ctx, email)
	if err != nil {
		return web.Result{}, err
	}
	if exists {
		return web.Reject(http.StatusUnprocessableEntity, MsgAlreadyExists), nil
	}

	challenge := f.newChallenge()
	if err := f.store.CreateRegistration(ctx, email, challenge); err != nil {
		return web.Result{}, err
	}

	msg, err := f.composer.Registration(email, challenge)
	if err != nil {
		return web.Result{}, fmt.Errorf("composing registration mail: %w", err)
	}
	if err := f.sender.Send(ctx, msg); err != nil {
		slog.Error("failed to send registration mail", "email", email, "error", err)
		return web.Reject(http.StatusInternalServerError, MsgMailUnavailable), nil
	}

	slog.Info("registration issued", "email", email, "by", sess.Email())
	return web.OK(MsgCheckMail), nil
}

// VerifyRegistration turns the registration behind challenge into a user.
// Unknown, used and expired challenges are indistinguishable. A store
// failure leaves the registration in place so the link can be retried.
func (f *Flow) VerifyRegistration(ctx context.Context, challenge string) (web.Result, error) {
	email, err := f.store.CompleteRegistration(ctx, challenge)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.Debug("unknown registration challenge")
			return web.RejectPage(http.StatusUnauthorized, web.PageInvalidToken), nil
		}
		return web.Result{}, err
	}

	slog.Info("user registered", "email", email)
	return web.OKPage(web.PageRegistered), nil
}

// Logout discards a logged-in session.
func (f *Flow) Logout(sess *session.Session) web.Result {
	if sess.Authenticated() {
		slog.Info("user logged out", "email", sess.Email())
		sess.Purge()
	}
	return web.Redirect("/login")
}

// Poll tells a waiting client whether the session has been logged in.
func (f *Flow) Poll(sess *session.Session) web.Result {
	if sess.Authenticated() {
		return web.OK("")
	}
	return web.Reject(http.StatusNotAcceptable, "")
}
