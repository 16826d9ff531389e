package api

import (
	"context"
	"strconv"
	"time"

	"raffler/application"
	"raffler/domain/entities"
	"raffler/domain/interfaces"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Engine is the set of engine operations exposed over HTTP
type Engine interface {
	CreateRaffle(ctx context.Context, params interfaces.CreateRaffleParams) (*entities.Raffle, error)
	GetRaffle(ctx context.Context, raffleID int64) (*entities.Raffle, error)
	Activate(ctx context.Context, raffleID int64) (*entities.Raffle, error)
	Pause(ctx context.Context, raffleID int64) (*entities.Raffle, error)
	Resume(ctx context.Context, raffleID int64) (*entities.Raffle, error)
	EndEntries(ctx context.Context, raffleID int64) (*entities.Raffle, error)
	Cancel(ctx context.Context, raffleID int64, reason string) (*entities.Raffle, error)
	GetStatusHistory(ctx context.Context, raffleID int64) ([]*entities.RaffleStatusChange, error)
	CreateEntry(ctx context.Context, params interfaces.EntryParams) (*entities.Entry, error)
	GetEntries(ctx context.Context, raffleID int64) ([]*entities.Entry, error)
	InitiateDraw(ctx context.Context, raffleID int64) (*entities.DrawResult, error)
	AbortDraw(ctx context.Context, raffleID int64, reason string) (*entities.Raffle, error)
	GetDrawResult(ctx context.Context, raffleID int64) (*entities.DrawResult, error)
	AuditDraw(ctx context.Context, raffleID int64) (*interfaces.DrawAudit, error)
	SendPayout(ctx context.Context, winnerID int64) (*entities.PayoutRecord, error)
	SendAllPayouts(ctx context.Context, raffleID int64) (*application.BatchResult, error)
	RequestRetry(ctx context.Context, request interfaces.RetryRequest) (*entities.PayoutRecord, error)
	GetWinners(ctx context.Context, raffleID int64) ([]*entities.Winner, error)
	GetPayoutHistory(ctx context.Context, winnerID int64) ([]*entities.PayoutRecord, error)
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker func(ctx context.Context) error

// Server holds the dependencies of the admin HTTP API
type Server struct {
	engine   Engine
	registry *prometheus.Registry
	health   map[string]HealthChecker

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewServer creates a new admin API server. Request metrics are registered
// on registry and served from /metrics.
func NewServer(engine Engine, registry *prometheus.Registry, health map[string]HealthChecker) *Server {
	factory := promauto.With(registry)
	return &Server{
		engine:   engine,
		registry: registry,
		health:   health,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raffler_http_requests_total",
			Help: "Total number of admin API requests",
		}, []string{"method", "route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "raffler_http_request_duration_seconds",
			Help:    "Admin API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.observe())
	s.RegisterRoutes(router)
	return router
}

// RegisterRoutes registers all the admin routes
func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", s.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	raffles := router.Group("/raffles")
	raffles.POST("", s.CreateRaffle)
	raffles.GET("/:id", s.GetRaffle)
	raffles.GET("/:id/history", s.GetStatusHistory)
	raffles.POST("/:id/activate", s.transition((Engine).Activate))
	raffles.POST("/:id/pause", s.transition((Engine).Pause))
	raffles.POST("/:id/resume", s.transition((Engine).Resume))
	raffles.POST("/:id/end", s.transition((Engine).EndEntries))
	raffles.POST("/:id/cancel", s.CancelRaffle)
	raffles.GET("/:id/entries", s.GetEntries)
	raffles.POST("/:id/entries", s.CreateEntry)
	raffles.GET("/:id/draw", s.GetDrawResult)
	raffles.POST("/:id/draw", s.InitiateDraw)
	raffles.POST("/:id/draw/abort", s.AbortDraw)
	raffles.GET("/:id/verify", s.VerifyDraw)
	raffles.GET("/:id/winners", s.GetWinners)
	raffles.POST("/:id/payouts", s.SendAllPayouts)

	winners := router.Group("/winners")
	winners.POST("/:id/payout", s.SendPayout)
	winners.POST("/:id/retry", s.RequestRetry)
	winners.GET("/:id/payouts", s.GetPayoutHistory)
}

// observe records request counts and latency per route template
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		s.requests.WithLabelValues(c.Request.Method, route, status).Inc()
		s.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())

		if c.Writer.Status() >= 500 {
			log.WithFields(log.Fields{
				"method": c.Request.Method,
				"route":  route,
				"status": status,
			}).Warn("Admin request failed")
		}
	}
}
