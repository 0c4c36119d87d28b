package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/postboard/apiserver/config"
	"github.com/postboard/apiserver/internal/auth"
	"github.com/postboard/apiserver/internal/db"
	"github.com/postboard/apiserver/internal/handlers"
	"github.com/postboard/apiserver/internal/mq"
	"github.com/postboard/apiserver/internal/services"
	"github.com/postboard/apiserver/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const defaultPort = 8080

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	log        logrus.FieldLogger
}

// New validates cfg, connects to postgres and the optional message broker,
// and builds the router.
func New(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.Algorithm, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	events := mq.NewEventPublisher(broker, log.WithField("component", "events"))

	userRepo := store.NewUserRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)

	userService := services.NewUserService(userRepo, auth.NewPasswordHasher(bcrypt.DefaultCost), events, log)
	postService := services.NewPostService(postRepo, events, log)

	router := handlers.NewRouter(handlers.Dependencies{
		Config:      cfg,
		UserService: userService,
		PostService: postService,
		Tokens:      tokens,
		Log:         log,
	})

	return &Server{
		httpServer: newHTTPServer(cfg.ServerPort, router),
		router:     router,
		db:         dbConn,
		mq:         broker,
		log:        log,
	}, nil
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	if port == 0 {
		port = defaultPort
	}
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: handlers.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker and the pool.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if closeErr := s.mq.Close(); closeErr != nil {
			s.log.WithError(closeErr).Warn("close message broker failed")
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
