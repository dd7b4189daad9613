package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/haak/internal/models"
	"github.com/hoanghai1803/haak/internal/session"
	"github.com/hoanghai1803/haak/internal/web"
)

// Dashboard handles GET /. It shows the landing page in the user's
// preferences.
func Dashboard(d Deps) http.HandlerFunc {
	return withSession(d.Sessions, d.Pages, func(r *http.Request, sess *session.Session) (web.Result, error) {
		if !sess.Authenticated() {
			return web.Redirect("/login"), nil
		}

		prefs, err := d.Store.Preferences(r.Context(), sess.Email())
		if err != nil {
			return web.Result{}, err
		}

		var buf bytes.Buffer
		if err := d.Pages.Dashboard(&buf, prefs); err != nil {
			return web.Result{}, err
		}
		return web.OKHTML(buf.Bytes()), nil
	})
}

// GetSettings handles GET /settings. Admins also see the registration form.
func GetSettings(d Deps) http.HandlerFunc {
	return withSession(d.Sessions, d.Pages, func(r *http.Request, sess *session.Session) (web.Result, error) {
		if !sess.Authenticated() {
			return web.Redirect("/login"), nil
		}
		ctx := r.Context()

		prefs, err := d.Store.Preferences(ctx, sess.Email())
		if err != nil {
			return web.Result{}, err
		}
		admin, err := d.Store.UserIsAdmin(ctx, sess.Email())
		if err != nil {
			return web.Result{}, err
		}

		var buf bytes.Buffer
		if err := d.Pages.Settings(&buf, prefs, admin); err != nil {
			return web.Result{}, err
		}
		return web.OKHTML(buf.Bytes()), nil
	})
}

// SaveSettings handles POST /settings with the form fields temperature,
// pressure, theme and timeframe. All four are written together or not at
// all; invalid input is dropped and the user lands back on /settings.
func SaveSettings(d Deps) http.HandlerFunc {
	return withSession(d.Sessions, d.Pages, func(r *http.Request, sess *session.Session) (web.Result, error) {
		if !sess.Authenticated() {
			return web.Redirect("/login"), nil
		}

		prefs, err := readPreferences(r)
		if err != nil {
			slog.Debug("ignoring settings update", "email", sess.Email(), "error", err)
			return web.Redirect("/settings"), nil
		}

		if err := d.Store.SetSettings(r.Context(), sess.Email(), prefs); err != nil {
			return web.Result{}, err
		}
		slog.Info("settings saved", "email", sess.Email())
		return web.Redirect("/settings"), nil
	})
}

func readPreferences(r *http.Request) (models.Preferences, error) {
	if err := r.ParseForm(); err != nil {
		return models.Preferences{}, fmt.Errorf("parsing form: %w", err)
	}

	prefs := models.Preferences{
		Temperature: r.PostFormValue("temperature"),
		Pressure:    r.PostFormValue("pressure"),
		Theme:       r.PostFormValue("theme"),
		Timeframe:   r.PostFormValue("timeframe"),
	}
	if err := prefs.Validate(); err != nil {
		return models.Preferences{}, err
	}
	return prefs, nil
}
