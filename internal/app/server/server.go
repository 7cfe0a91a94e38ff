package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/redirector/internal/app/service"
	inthttp "github.com/sifan077/redirector/internal/http/handler"
	"github.com/sifan077/redirector/internal/http/middleware"
	"go.uber.org/zap"
)

// Dependencies bundles the services and infrastructure required by the HTTP servers.
type Dependencies struct {
	Logger    *zap.Logger
	Redis     *redis.Client
	RateLimit middleware.RateLimitConfig
	Domains   service.DomainService
	Backlinks service.BacklinkService
	Rules     service.RuleService
	Redirects service.RedirectService
	Hits      inthttp.HitPublisher
}

// Server owns two Fiber applications: the management API and the live redirect surface.
// They listen separately so the redirect catch-all never shadows /api.
type Server struct {
	admin    *fiber.App
	redirect *fiber.App
	deps     Dependencies
}

// New creates both applications with their middleware and routes.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Server{
		admin: fiber.New(fiber.Config{
			AppName:               "redirector-admin",
			DisableStartupMessage: true,
			BodyLimit:             16 * 1024 * 1024,
		}),
		redirect: fiber.New(fiber.Config{
			AppName:               "redirector",
			DisableStartupMessage: true,
			Immutable:             true,
			ReadTimeout:           10 * time.Second,
			WriteTimeout:          10 * time.Second,
		}),
		deps: deps,
	}

	s.registerAdminRoutes()
	s.registerRedirectRoutes()
	return s
}

// Admin exposes the management application, mostly for tests.
func (s *Server) Admin() *fiber.App { return s.admin }

// Redirect exposes the live redirect application, mostly for tests.
func (s *Server) Redirect() *fiber.App { return s.redirect }

// ListenAdmin starts the management API on the given address.
func (s *Server) ListenAdmin(addr string) error {
	return s.admin.Listen(addr)
}

// ListenRedirect starts the live redirect surface on the given address.
func (s *Server) ListenRedirect(addr string) error {
	return s.redirect.Listen(addr)
}

// Shutdown gracefully stops both applications.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(
		s.redirect.ShutdownWithContext(ctx),
		s.admin.ShutdownWithContext(ctx),
	)
}

func (s *Server) registerAdminRoutes() {
	log := s.deps.Logger
	s.admin.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.CORS(),
	)
	s.admin.Get("/health", inthttp.Health)
	s.admin.Use("/api", middleware.RateLimit(s.deps.Redis, s.deps.RateLimit, log))

	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:    log,
		Domains:   s.deps.Domains,
		Backlinks: s.deps.Backlinks,
		Rules:     s.deps.Rules,
		Redirects: s.deps.Redirects,
	})
	apiHandler.Register(s.admin)
}

func (s *Server) registerRedirectRoutes() {
	log := s.deps.Logger
	s.redirect.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
	)

	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:    log,
		Redirects: s.deps.Redirects,
		Hits:      s.deps.Hits,
	})
	redirectHandler.Register(s.redirect)
}
