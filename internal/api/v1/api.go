// Package api implements the okn-go JSON API (v1): session commands, state,
// results, trial export, the SSE state stream and detector ingest.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/okn-go/internal/api/middleware"
	"github.com/tphakala/okn-go/internal/detector"
	"github.com/tphakala/okn-go/internal/logger"
	"github.com/tphakala/okn-go/internal/session"
)

// Session is the part of the session machine the API drives.
type Session interface {
	Start(ctx context.Context) error
	Continue(ctx context.Context) error
	Reset(ctx context.Context) error
	Submit(d detector.Detection) bool
	State() session.Snapshot
	LastTrial() (session.TrialExport, bool)
}

// Default limits.
const (
	DefaultIngestRPS    = 120
	DefaultCommandWait  = 5 * time.Second
	DefaultHeartbeat    = 15 * time.Second
	sseConnectionRate   = 1 // per second per client IP
	maxDetectorBodySize = "16K"
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo    *echo.Echo
	Group   *echo.Group
	Session Session

	log          logger.Logger
	detectorFeed http.Handler
	ingestRPS    float64
	commandWait  time.Duration
	startTime    time.Time

	// SSE related fields
	sseManager *SSEManager

	// Cancelled by Shutdown to end open streams
	ctx    context.Context
	cancel context.CancelFunc
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithLogger overrides the api module logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithDetectorFeed mounts a websocket detector feed at /detector/ws.
func WithDetectorFeed(h http.Handler) Option {
	return func(c *Controller) { c.detectorFeed = h }
}

// WithIngestRate limits POST /detector per client IP.
func WithIngestRate(rps float64) Option {
	return func(c *Controller) {
		if rps > 0 {
			c.ingestRPS = rps
		}
	}
}

// WithHeartbeat sets the SSE heartbeat interval.
func WithHeartbeat(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.sseManager.heartbeat = d
		}
	}
}

// GetLogger returns the api module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// New creates the API controller and registers its routes under /api/v1.
func New(e *echo.Echo, sess Session, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		Echo:        e,
		Group:       e.Group("/api/v1"),
		Session:     sess,
		log:         GetLogger(),
		ingestRPS:   DefaultIngestRPS,
		commandWait: DefaultCommandWait,
		startTime:   time.Now(),
		sseManager:  NewSSEManager(),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sseManager.log = c.log
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	c.Group.GET("/state", c.GetState)
	c.Group.GET("/result", c.GetResult)
	c.Group.GET("/trial", c.GetTrial)
	c.Group.GET("/stimulus", c.GetStimulus)

	test := c.Group.Group("/test")
	test.POST("/start", c.StartTest)
	test.POST("/continue", c.ContinueTest)
	test.POST("/reset", c.ResetTest)

	c.Group.GET("/stream", c.StreamState,
		middleware.NewRateLimiter(sseConnectionRate, "too many stream connection attempts"))

	c.Group.POST("/detector", c.PostDetection,
		middleware.NewBodyLimit(maxDetectorBodySize),
		middleware.NewRateLimiter(c.ingestRPS, "detector ingest rate exceeded"))
	if c.detectorFeed != nil {
		c.Group.GET("/detector/ws", echo.WrapHandler(c.detectorFeed))
	}
}

// SSE returns the stream manager. Register it with the event bus so state
// changes reach connected clients.
func (c *Controller) SSE() *SSEManager {
	return c.sseManager
}

// Shutdown disconnects stream clients.
func (c *Controller) Shutdown() {
	c.cancel()
	c.sseManager.CloseAll()
}

// HealthCheck reports liveness and the current phase.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	uptime := time.Since(c.startTime)
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"phase":          c.Session.State().Phase,
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"stream_clients": c.sseManager.GetClientCount(),
	})
}
