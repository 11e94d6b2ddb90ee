package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fotofeed/apiserver/config"
	"github.com/fotofeed/apiserver/internal/db"
	"github.com/fotofeed/apiserver/internal/handlers"
	"github.com/fotofeed/apiserver/internal/mailer"
	"github.com/fotofeed/apiserver/internal/mq"
	"github.com/fotofeed/apiserver/internal/services"
	"github.com/fotofeed/apiserver/internal/storage"
	"github.com/fotofeed/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

const resendCooldown = 60 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	storageBackend, err := storage.NewBackend(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	blobStore := storage.NewStorage(storageBackend)
	if err := blobStore.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	// With no queue backend configured, mail goes out synchronously.
	var queue *mq.MQ
	var mailSender mailer.Sender
	if strings.TrimSpace(cfg.MQ.Backend) != "" {
		mqBackend, err := mq.NewBackend(ctx, cfg.MQ)
		if err != nil {
			_ = dbConn.Close()
			return nil, err
		}
		queue = mq.New(mqBackend)
		mailSender = mailer.NewQueueSender(queue, cfg.MQ.MailChannel)
	} else {
		mailSender = mailer.NewSMTPSender(cfg.Mail)
	}

	userRepo := store.NewUserRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)
	commentRepo := store.NewCommentRepository(dbConn)

	cooldown := services.NewCooldown(resendCooldown)
	userService := services.NewUserService(userRepo, mailSender, cooldown, cfg.Mail.ClientOrigin)
	postService := services.NewPostService(postRepo)
	commentService := services.NewCommentService(commentRepo, postRepo)

	authMiddleware := handlers.RequireAuth(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins: []string{cfg.CORS.AllowedOrigin},
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		}),
		httprate.LimitByIP(cfg.RateLimit.Requests, cfg.RateLimit.Window),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, cfg.Auth)
	})
	router.Route("/posts", func(r chi.Router) {
		handlers.PostRouter(r, postService, commentService, blobStore, authMiddleware)
	})
	router.Route("/comments", func(r chi.Router) {
		handlers.CommentRouter(r, commentService, authMiddleware)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, blobStore, authMiddleware)
	})
	router.Route("/uploads", func(r chi.Router) {
		handlers.UploadRouter(r, blobStore)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	return s.httpServer.Close()
}
