// Package server exposes the identity service and session coordinator over
// HTTP.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/scottschroeder/storyestimate/internal/estimate"
	"github.com/scottschroeder/storyestimate/internal/ratelimit"
	"github.com/scottschroeder/storyestimate/internal/storage/sqlite"
	"github.com/scottschroeder/storyestimate/internal/user"
)

// Server is the StoryEstimates HTTP server.
type Server struct {
	addr     string
	router   *gin.Engine
	httpSrv  *http.Server
	users    *user.Service
	sessions *estimate.Coordinator
	limiter  *ratelimit.Limiter

	userStore    user.Store
	sessionStore estimate.Store
	tokenCost    int
	limitMax     int
	limitWindow  time.Duration
	corsOrigin   string
	accessLog    bool

	stopOnce sync.Once
	done     chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithRedis keeps users and sessions in Redis.
func WithRedis(client redis.Cmdable) Option {
	return func(s *Server) {
		s.userStore = user.NewRedisStore(client)
		s.sessionStore = estimate.NewRedisStore(client)
	}
}

// WithSQLite keeps users and sessions in a SQLite database.
func WithSQLite(db *sqlite.Store) Option {
	return WithStores(db.Users(), db.Sessions())
}

// WithStores sets the user and session stores directly.
func WithStores(users user.Store, sessions estimate.Store) Option {
	return func(s *Server) {
		s.userStore = users
		s.sessionStore = sessions
	}
}

// WithTokenCost sets the bcrypt cost for hashing user tokens.
func WithTokenCost(cost int) Option {
	return func(s *Server) { s.tokenCost = cost }
}

// WithRateLimit limits identity issuance and session creation to max
// requests per client address per window.
func WithRateLimit(max int, window time.Duration) Option {
	return func(s *Server) {
		s.limitMax = max
		s.limitWindow = window
	}
}

// WithCORSOrigin sets the Access-Control-Allow-Origin value.
func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

// WithAccessLog toggles the per-request access log.
func WithAccessLog(enabled bool) Option {
	return func(s *Server) { s.accessLog = enabled }
}

// New creates a new Server listening on addr. Without a store option
// everything is kept in memory.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:         addr,
		userStore:    user.NewMemoryStore(),
		sessionStore: estimate.NewMemoryStore(),
		tokenCost:    bcrypt.DefaultCost,
		limitMax:     60,
		limitWindow:  time.Minute,
		corsOrigin:   "*",
		accessLog:    true,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.users = user.NewService(s.userStore, s.tokenCost)
	s.sessions = estimate.NewCoordinator(s.sessionStore)
	s.limiter = ratelimit.New(s.limitMax, s.limitWindow)
	s.router = s.routes()
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.router }

// Run starts the HTTP server and blocks until it stops. It returns nil
// after a clean Shutdown.
func (s *Server) Run() error {
	go s.sweepLimiter()
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) sweepLimiter() {
	ticker := time.NewTicker(s.limitWindow)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.limiter.Sweep()
		case <-s.done:
			return
		}
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	if s.accessLog {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery(), s.cors())

	r.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "no route for "+c.Request.URL.Path)
	})
	r.NoMethod(func(c *gin.Context) {
		abortWithError(c, http.StatusMethodNotAllowed, c.Request.Method+" not allowed on "+c.Request.URL.Path)
	})

	r.GET("/", s.handleWelcome)
	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	api.POST("/user", s.rateLimit(), s.handleIssueUser)
	api.GET("/user", s.requireUser(), s.handleValidateUser)

	api.POST("/session", s.rateLimit(), s.requireUser(), s.handleCreateSession)
	api.GET("/session/:id", s.handleGetSession)
	api.PATCH("/session/:id", s.requireUser(), s.handleSetState)
	api.DELETE("/session/:id", s.requireUser(), s.handleDeleteSession)

	api.PUT("/session/:id/user/:uid", s.requireUser(), s.handleJoin)
	api.DELETE("/session/:id/user/:uid", s.requireUser(), s.handleLeave)
	api.POST("/session/:id/user/:uid/vote", s.requireUser(), s.handleVote)

	api.POST("/session/:id/admin/:uid", s.requireUser(), s.handleGrantAdmin)
	api.DELETE("/session/:id/admin/:uid", s.requireUser(), s.handleRevokeAdmin)

	return r
}

// rateLimit rejects clients that exceed the configured request rate.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(c.ClientIP()) {
			abortWithError(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

// cors sets the CORS headers and answers preflight requests.
func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", s.corsOrigin)
		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Origin, Accept, Authorization, X-Requested-With, TOK")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func logInternal(c *gin.Context, err error) {
	log.Printf("server: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
}
