package dataapi

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/banking_datagen/middlewares"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	// Gatherer exposes GET /metrics when set.
	Gatherer prometheus.Gatherer
	// RateLimiter is applied to /generate_data when set.
	RateLimiter *middlewares.RateLimiter
}

func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.CorsMiddleware())
	r.Use(middlewares.ErrorLogger(h.Logger))
	r.Use(middlewares.Recovery(h.Logger))

	r.GET("/health", h.Health)
	if opts.RateLimiter != nil {
		r.POST("/generate_data", opts.RateLimiter.Middleware(), h.GenerateData)
	} else {
		r.POST("/generate_data", h.GenerateData)
	}
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	r.NoRoute(notFound)
	return r
}
