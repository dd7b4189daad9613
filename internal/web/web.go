// Package web renders the HTML pages of the dashboard and serves its static
// assets. Rendering is a pure function of the data passed in.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/hoanghai1803/haak/internal/models"
)

// Page names a template without dynamic data.
type Page string

const (
	PageLogin        Page = "login.html"
	PageVerified     Page = "verified.html"
	PageInvalidToken Page = "invalid_token.html"
	PageRegistered   Page = "registered.html"

	pageDashboard = "index.html"
	pageSettings  = "settings.html"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed all:static
var staticFS embed.FS

// Static returns the static asset tree, rooted so that "resources/..." paths
// resolve directly.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Renderer executes the embedded page templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses all page templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Page renders a page that needs no data.
func (r *Renderer) Page(w io.Writer, p Page) error {
	return r.execute(w, string(p), nil)
}

type dashboardView struct {
	models.Preferences
}

// Dashboard renders the landing page for the given preferences.
func (r *Renderer) Dashboard(w io.Writer, prefs models.Preferences) error {
	return r.execute(w, pageDashboard, dashboardView{Preferences: prefs})
}

type option struct {
	Value    string
	Selected bool
}

type field struct {
	Name    string
	Label   string
	Options []option
}

type settingsView struct {
	models.Preferences
	Fields []field
	Admin  bool
}

func newField(name, label, current string, values []string) field {
	f := field{Name: name, Label: label}
	for _, v := range values {
		f.Options = append(f.Options, option{Value: v, Selected: v == current})
	}
	return f
}

// Settings renders the settings form. Admins also get the registration form.
func (r *Renderer) Settings(w io.Writer, prefs models.Preferences, admin bool) error {
	view := settingsView{
		Preferences: prefs,
		Admin:       admin,
		Fields: []field{
			newField("temperature", "Temperature", prefs.Temperature, models.TemperatureUnits),
			newField("pressure", "Pressure", prefs.Pressure, models.PressureUnits),
			newField("theme", "Theme", prefs.Theme, models.Themes),
			newField("timeframe", "Timeframe", prefs.Timeframe, models.Timeframes),
		},
	}
	return r.execute(w, pageSettings, view)
}

func (r *Renderer) execute(w io.Writer, name string, data any) error {
	if err := r.tmpl.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	return nil
}
