package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/postboard/apiserver/config"
	"github.com/postboard/apiserver/internal/logging"
	"github.com/postboard/apiserver/internal/services"
	"github.com/sirupsen/logrus"
)

// RequestTimeout bounds a request's context. The HTTP server's write deadline
// must exceed it so the 504 can still reach the client.
const RequestTimeout = 30 * time.Second

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Config      config.Config
	UserService *services.UserService
	PostService *services.PostService
	Tokens      TokenIssuer
	Log         logrus.FieldLogger
}

// NewRouter builds the full route tree. API routes live under
// Config.APIPrefix; the index page and health check stay at the root.
func NewRouter(deps Dependencies) *chi.Mux {
	authenticator := NewAuthenticator(deps.Tokens, deps.UserService, deps.Log)
	desc := NewDescHandler(deps.Config.Project, deps.Config.APIPrefix)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(deps.Log),
		middleware.Recoverer,
		middleware.Timeout(RequestTimeout),
	)
	if len(deps.Config.CORSOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.Config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	router.Get("/", desc.Index)
	router.Get("/healthz", Healthz)

	registerAPI := func(api chi.Router) {
		api.Get("/description", desc.Description)
		AuthRouter(api, deps.UserService, deps.Tokens, deps.Log)
		api.Route("/users", func(r chi.Router) {
			UserRouter(r, deps.UserService, authenticator.RequireAuth, deps.Log)
		})
		api.Route("/posts", func(r chi.Router) {
			PostRouter(r, deps.PostService, authenticator.RequireAuth, deps.Log)
		})
	}
	if deps.Config.APIPrefix == "" {
		registerAPI(router)
	} else {
		router.Route(deps.Config.APIPrefix, registerAPI)
	}
	return router
}
