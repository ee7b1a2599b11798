package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "causalgrid",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "causalgrid",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// requestContext attaches the app logger to every request context.
func (a *App) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := a.logger.With("method", c.Request.Method, "path", c.Request.URL.Path)
		c.Request = c.Request.WithContext(ctxlog.WithLogger(c.Request.Context(), logger))
		c.Next()
	}
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Router builds the HTTP API.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), a.requestContext(), requestMetrics())

	r.GET("/health", a.healthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.telemetry.gatherer(), promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.GET("/snapshot", a.snapshotHandler)
	v1.GET("/validation", a.validationHandler)
	v1.GET("/nodes/:id", a.nodeHandler)
	v1.GET("/nodes/:id/history", a.historyHandler)
	v1.GET("/nodes/:id/descendants", a.descendantsHandler)
	v1.GET("/nodes/:id/ancestors", a.ancestorsHandler)
	v1.GET("/paths/strongest", a.strongestPathHandler)
	v1.GET("/chains", a.chainsHandler)
	v1.POST("/simulate", a.simulateHandler)
	return r
}

// startServer initializes and runs the HTTP server.
func (a *App) startServer() {
	a.logger.Debug("Configuring HTTP server.")
	addr := fmt.Sprintf(":%d", a.config.Port)
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.logger.Info("HTTP server starting", "address", fmt.Sprintf("http://localhost%s", addr))
		// ListenAndServe returns ErrServerClosed on graceful shutdown.
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed unexpectedly", "error", err)
		}
	}()
}

func (a *App) closeServer() error {
	if a.httpServer == nil {
		a.logger.Debug("HTTP server was not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()

	a.logger.Info("Shutting down HTTP server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("HTTP server shutdown failed", "error", err)
		return err
	}
	a.logger.Debug("HTTP server shut down gracefully.")
	return nil
}
