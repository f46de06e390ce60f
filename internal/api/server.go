package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"positionSwap/internal/world"
)

// Server exposes a World over HTTP.
type Server struct {
	world    *world.World
	router   *gin.Engine
	server   *http.Server
	logger   *zap.Logger
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewServer builds the router. reg receives the request metrics and gatherer
// backs /metrics; either may be nil to disable them.
func NewServer(w *world.World, reg prometheus.Registerer, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{world: w, router: router, logger: logger}
	if reg != nil {
		factory := promauto.With(reg)
		s.requests = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "positionswap",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"})
		s.latency = factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "positionswap",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"})
	}
	router.Use(s.observe)
	s.routes(gatherer)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/v1")
	v1.GET("/pools", s.handleListPools)
	v1.GET("/pools/:token", s.handleGetPool)
	v1.GET("/pools/:token/positions", s.handleListPositions)
	v1.GET("/pools/:token/price/token", s.handlePriceOfToken)
	v1.GET("/pools/:token/price/eth", s.handlePriceOfEth)
	v1.POST("/quote", s.handleQuote)
	v1.POST("/swap", s.handleSwap)
	v1.POST("/liquidity", s.handleAddLiquidity)
	v1.GET("/positions/:id", s.handleGetPosition)
	v1.POST("/positions/:id/remove", s.handleRemoveLiquidity)
	v1.POST("/positions/:id/transfer", s.handleTransferPosition)
	v1.GET("/accounts/:account", s.handleGetAccount)

	dev := v1.Group("/dev")
	dev.POST("/tokens", s.handleDeployToken)
	dev.POST("/fund", s.handleFund)
	dev.POST("/approve", s.handleApprove)
}

func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	status := c.Writer.Status()
	if s.requests != nil {
		s.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		s.latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
	s.logger.Debug("http request",
		zap.String("method", c.Request.Method),
		zap.String("route", route),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)),
	)
}
