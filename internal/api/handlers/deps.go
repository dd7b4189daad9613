// Package handlers implements the HTTP endpoints of the weather station.
// Each constructor returns an http.HandlerFunc closed over its dependencies.
package handlers

import (
	"github.com/hoanghai1803/haak/internal/auth"
	"github.com/hoanghai1803/haak/internal/session"
	"github.com/hoanghai1803/haak/internal/storage"
	"github.com/hoanghai1803/haak/internal/web"
)

// Deps holds what the endpoints share.
type Deps struct {
	Sessions *session.Manager
	Flow     *auth.Flow
	Store    *storage.Store
	Pages    *web.Renderer
}
