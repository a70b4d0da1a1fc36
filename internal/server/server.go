// Package server is the HTTP API used by the browser shell: generation with
// per-session cancellation, history, template and instruction selection,
// provider status and metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"agenticos/internal/config"
	"agenticos/internal/generation"
	"agenticos/internal/logging"
	"agenticos/internal/metrics"
	"agenticos/internal/prompt"
	"agenticos/internal/store"
	"agenticos/internal/types"
)

// Generator runs one generation.
type Generator interface {
	Run(ctx context.Context, req types.GenerationRequest) (*generation.Result, error)
}

// CredentialStatus reports provider configuration.
type CredentialStatus interface {
	ActiveProvider() (types.ProviderSelection, bool)
	Selection(p types.Provider) (types.ProviderSelection, bool)
	Status() []config.ProviderStatus
}

// Prober checks connectivity to a provider.
type Prober interface {
	Probe(ctx context.Context, sel types.ProviderSelection) error
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Generator Generator
	Catalog   *prompt.Catalog
	History   *store.History
	Creds     CredentialStatus
	Prober    Prober
	Metrics   *metrics.Metrics
}

// Server is the HTTP API.
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	sem    *semaphore.Weighted
	engine *gin.Engine

	mu       sync.Mutex
	sessions map[string]*generation.Session
}

// New builds the server and its routes.
func New(cfg config.ServerConfig, deps Deps) *Server {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		sessions: make(map[string]*generation.Session),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  s.cfg.AllowedOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "X-Session-ID"},
			ExposeHeaders: []string{"X-Session-ID"},
			MaxAge:        12 * time.Hour,
		}))
	}
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.GinMiddleware())
		r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api")
	{
		api.POST("/generate", s.handleGenerate)
		api.POST("/sessions/:id/cancel", s.handleCancel)

		api.GET("/history", s.handleHistoryList)
		api.GET("/history/:id", s.handleHistoryGet)
		api.GET("/history/:id/document", s.handleHistoryDocument)
		api.DELETE("/history/:id", s.handleHistoryDelete)

		api.GET("/templates", s.handleTemplates)
		api.PUT("/templates/:agent", s.handleSelectTemplate)
		api.GET("/instructions", s.handleInstructions)
		api.PUT("/instructions/:agent", s.handleSelectInstruction)

		api.GET("/status", s.handleStatus)
	}
	return r
}

// begin starts a generation in session id, cancelling the session's previous one.
func (s *Server) begin(parent context.Context, id string) (context.Context, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &generation.Session{}
		s.sessions[id] = sess
	}
	ctx, gen := sess.Begin(parent)
	return ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		sess.End(gen)
		if !sess.Active() {
			delete(s.sessions, id)
		}
	}
}

// supersede cancels the generation running in session id. It reports whether
// one was running.
func (s *Server) supersede(id string) bool {
	sess, ok := s.lookupSession(id)
	return ok && sess.Cancel()
}

func (s *Server) lookupSession(id string) (*generation.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// CancelAll stops every in-flight generation.
func (s *Server) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.Cancel()
	}
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Server("listening on %s", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.CancelAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logging.Server("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.ServerDebug("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
