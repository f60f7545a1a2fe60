package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nikhilbhutani/ragdesk/internal/api/handlers"
	"github.com/nikhilbhutani/ragdesk/internal/api/middleware"
	"github.com/nikhilbhutani/ragdesk/internal/app"
)

type Router struct {
	mux *chi.Mux
	app *app.App
}

func NewRouter(a *app.App) *Router {
	return &Router{
		mux: chi.NewRouter(),
		app: a,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	cfg := rt.app.Config

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         3600,
	}))

	rl := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	r.Use(rl.Limit)

	health := handlers.NewHealthHandler(rt.app.DB, rt.app.Redis, cfg.Server.AppName, cfg.Server.Port)
	r.Get("/", health.Root)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route(cfg.Server.APIPrefix, func(r chi.Router) {
		docH := handlers.NewDocumentHandler(rt.app.Documents, cfg.Upload.MaxFileSizeMB)
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docH.Upload)
			r.Get("/{taskId}", docH.Get)
		})

		storeH := handlers.NewVectorStoreHandler(rt.app.VectorStores, cfg.Server.APIPrefix)
		r.Route("/vector-stores", func(r chi.Router) {
			r.Post("/", storeH.Create)
			r.Get("/", storeH.List)
			r.Get("/{storeId}", storeH.Get)
			r.Get("/{storeId}/tasks/{taskId}", storeH.TaskStatus)
			r.Post("/{storeId}/recall", storeH.Recall)
		})

		chatH := handlers.NewChatHandler(rt.app.Chat)
		r.Route("/chat/sessions", func(r chi.Router) {
			r.Get("/", chatH.ListSessions)
			r.Post("/", chatH.CreateSession)
			r.Get("/{sessionId}", chatH.GetSession)
			r.Delete("/{sessionId}", chatH.DeleteSession)
			r.Post("/{sessionId}/messages", chatH.SendMessage)
		})
	})

	return r
}
