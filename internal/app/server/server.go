package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/tinyurl/internal/app/service"
	"github.com/sifan077/tinyurl/internal/http/handler"
	"github.com/sifan077/tinyurl/internal/http/middleware"
	"go.uber.org/zap"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	bodyLimit    = 64 * 1024
)

// Dependencies bundles what the HTTP server needs. Redis is optional; rate
// limiting is only installed when it is set and RateLimit.MaxRequests > 0.
type Dependencies struct {
	Logger    *zap.Logger
	Service   service.URLService
	URLPrefix string
	Redis     redis.UniversalClient
	RateLimit middleware.RateLimitConfig
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with middleware and routes installed.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "tinyurl",
		DisableStartupMessage: true,
		ReadTimeout:           readTimeout,
		WriteTimeout:          writeTimeout,
		BodyLimit:             bodyLimit,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(
		middleware.RequestID(),
		middleware.Logger(s.deps.Logger),
		middleware.Metrics(),
		middleware.Recovery(s.deps.Logger),
		middleware.CORS(),
	)

	if s.deps.Redis != nil && s.deps.RateLimit.MaxRequests > 0 {
		s.app.Use(middleware.RateLimit(s.deps.Redis, s.deps.RateLimit, s.deps.Logger))
	}
}

func (s *Server) registerRoutes() {
	urlHandler := handler.NewURLHandler(handler.URLDeps{
		Logger:    s.deps.Logger,
		Service:   s.deps.Service,
		URLPrefix: s.deps.URLPrefix,
	})
	urlHandler.Register(s.app)
}
