package server

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mythforge/pkg/auth"
	"mythforge/pkg/oracle"
	"mythforge/pkg/schema"
)

// Store is the read side of persistence plus life event intake. Myths are only written through
// the oracle.
type Store interface {
	CreateLifeEvent(ctx context.Context, ev schema.LifeEvent) (schema.LifeEvent, error)
	GetLifeEvent(ctx context.Context, ownerID, id string) (schema.LifeEvent, error)
	ListLifeEvents(ctx context.Context, ownerID string) ([]schema.LifeEvent, error)
	GetMyth(ctx context.Context, ownerID, id string) (schema.Myth, error)
	ListMyths(ctx context.Context, ownerID string) ([]schema.Myth, error)
	Stats(ctx context.Context) (schema.Stats, error)
}

type Server struct {
	Echo     *echo.Echo
	Oracle   *oracle.Oracle
	Store    Store
	Verifier *auth.Verifier
	Gatherer prometheus.Gatherer

	now func() time.Time
}

type Options struct {
	AllowOrigins []string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

func NewServer(o *oracle.Oracle, st Store, v *auth.Verifier, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if len(opts.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: opts.AllowOrigins}))
	} else {
		e.Use(middleware.CORS())
	}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		Echo:     e,
		Oracle:   o,
		Store:    st,
		Verifier: v,
		Gatherer: gatherer,
		now:      time.Now,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))
	s.Echo.GET("/api/ping", s.handleGetPing)

	api := s.Echo.Group("/api", s.Verifier.Middleware())
	api.POST("/myths", s.handlePostMyth)
	api.GET("/myths", s.handleGetMyths)
	api.GET("/myths/:id", s.handleGetMyth)

	api.POST("/life-events", s.handlePostLifeEvent)
	api.GET("/life-events", s.handleGetLifeEvents)

	api.GET("/vocabulary", s.handleGetVocabulary)
	api.GET("/auth/me", s.handleGetMe)
	api.GET("/admin/stats", s.handleGetStats, auth.RequireRole(auth.RoleAdmin))
}

func (s *Server) Start(addr string) error {
	log.Info("Server listening", "addr", addr)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Shutting down server...")
	return s.Echo.Shutdown(ctx)
}
