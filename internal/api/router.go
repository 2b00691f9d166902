package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/arbor/internal/nodeservice"
)

// RouterConfig carries the transport settings of the API.
type RouterConfig struct {
	AuthEnabled bool
	Token       string
	CORSOrigins []string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *nodeservice.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(CORSMiddleware(cfg.CORSOrigins))
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	r.Get("/tree", h.GetTree)

	r.Post("/nodes", h.CreateNode)
	r.Route("/nodes/{id}", func(r chi.Router) {
		r.Get("/", h.GetNode)
		r.Patch("/", h.RenameNode)
		r.Delete("/", h.DeleteNode)
		r.Post("/move", h.MoveNode)
		r.Put("/content", h.UpdateContent)
		r.Get("/preview", h.Preview)
	})

	r.Get("/selection", h.GetSelection)
	r.Put("/selection", h.OpenFile)
	r.Delete("/selection", h.CloseFile)

	r.Get("/search", h.Search)
	r.Get("/tags/{tag}", h.Tagged)
	r.Get("/status", h.Status)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
