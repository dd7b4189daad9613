package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hoanghai1803/haak/internal/api/handlers"
	"github.com/hoanghai1803/haak/internal/web"
)

// NewRouter creates the HTTP router with all pages, auth endpoints and the
// embedded static assets.
func NewRouter(d handlers.Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(RequestLogger("/poll_login", "/resources/", "/favicon.ico"))
	r.Use(Recovery)

	r.Get("/", handlers.Dashboard(d))

	r.Get("/login", handlers.LoginPage(d))
	r.Post("/login", handlers.Login(d))
	r.Get("/poll_login", handlers.PollLogin(d))
	r.Get("/verify_login", handlers.VerifyLogin(d))
	r.Get("/logout", handlers.Logout(d))

	r.HandleFunc("/register", handlers.Register(d))
	r.Get("/verify_register", handlers.VerifyRegister(d))

	r.Get("/settings", handlers.GetSettings(d))
	r.Post("/settings", handlers.SaveSettings(d))

	static := http.FileServer(http.FS(web.Static()))
	r.Get("/resources/*", static.ServeHTTP)
	r.Get("/favicon.ico", static.ServeHTTP)

	return r
}
