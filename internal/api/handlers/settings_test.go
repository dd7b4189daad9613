package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hoanghai1803/haak/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settingsForm(temperature, pressure, theme, timeframe string) *http.Request {
	form := url.Values{
		"temperature": {temperature},
		"pressure":    {pressure},
		"theme":       {theme},
		"timeframe":   {timeframe},
	}
	r := httptest.NewRequest(http.MethodPost, "/settings", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestSettingsPages_RedirectAnonymous(t *testing.T) {
	d, _ := newTestDeps(t)

	tests := []struct {
		name string
		h    http.HandlerFunc
		r    *http.Request
	}{
		{"dashboard", Dashboard(d), httptest.NewRequest(http.MethodGet, "/", nil)},
		{"get settings", GetSettings(d), httptest.NewRequest(http.MethodGet, "/settings", nil)},
		{"save settings", SaveSettings(d), settingsForm("Kelvin", "PSI", "Dark", "Month")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.h.ServeHTTP(w, tt.r)

			require.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, "/login", w.Header().Get("Location"))
		})
	}
}

func TestSaveSettings(t *testing.T) {
	tests := []struct {
		name string
		r    *http.Request
		want models.Preferences
	}{
		{
			name: "all valid",
			r:    settingsForm("Kelvin", "PSI", "Dark", "Month"),
			want: models.Preferences{Temperature: "Kelvin", Pressure: "PSI", Theme: "Dark", Timeframe: "Month"},
		},
		{
			name: "one invalid",
			r:    settingsForm("Kelvin", "PSI", "Neon", "Month"),
			want: models.DefaultPreferences(),
		},
		{
			name: "missing field",
			r:    settingsForm("Kelvin", "", "Dark", "Month"),
			want: models.DefaultPreferences(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, box := newTestDeps(t)
			ctx := context.Background()
			require.NoError(t, d.Store.AddUser(ctx, "b@x.com", false))
			b := login(t, d, box, "b@x.com")

			w := b.do(SaveSettings(d), tt.r)
			require.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, "/settings", w.Header().Get("Location"))

			got, err := d.Store.Preferences(ctx, "b@x.com")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetSettings(t *testing.T) {
	d, box := newTestDeps(t)
	ctx := context.Background()
	require.NoError(t, d.Store.AddUser(ctx, "a@x.com", true))
	require.NoError(t, d.Store.AddUser(ctx, "b@x.com", false))

	tests := []struct {
		email     string
		adminForm bool
	}{
		{"a@x.com", true},
		{"b@x.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			b := login(t, d, box, tt.email)

			w := b.do(GetSettings(d), httptest.NewRequest(http.MethodGet, "/settings", nil))
			require.Equal(t, http.StatusOK, w.Code)
			out := body(t, w)

			assert.Contains(t, out, `<option value="Celsius" selected>`)
			assert.Equal(t, tt.adminForm, strings.Contains(out, "register-form"), "registration form shown")
		})
	}
}

func TestDashboard(t *testing.T) {
	d, box := newTestDeps(t)
	ctx := context.Background()
	require.NoError(t, d.Store.AddUser(ctx, "b@x.com", false))
	prefs := models.Preferences{Temperature: "Fahrenheit", Pressure: "Mercury", Theme: "Dark", Timeframe: "QuarterYear"}
	require.NoError(t, d.Store.SetSettings(ctx, "b@x.com", prefs))
	b := login(t, d, box, "b@x.com")

	w := b.do(Dashboard(d), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	out := body(t, w)
	for _, want := range []string{`data-temperature="Fahrenheit"`, `data-pressure="Mercury"`, `data-timeframe="QuarterYear"`} {
		assert.Contains(t, out, want)
	}
}
