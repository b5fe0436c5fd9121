package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mmdatafocus/banking_datagen/config"
	"github.com/mmdatafocus/banking_datagen/dataapi"
	"github.com/mmdatafocus/banking_datagen/middlewares"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "5000"

func main() {
	logger := config.GetLogger()

	port := config.Getenv("DATA_API_PORT", config.Getenv("PORT", defaultPort))

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := &dataapi.Handler{
		Logger:   logger,
		CacheTTL: config.DurationFromEnv("DATASET_CACHE_TTL", dataapi.DefaultCacheTTL),
		Metrics:  dataapi.NewMetrics(reg),
	}
	routerOpts := dataapi.RouterOptions{Gatherer: reg}

	// Redis is optional: it shares the dataset cache across replicas and backs rate limiting.
	var rdb *redis.Client
	if addr := strings.TrimSpace(os.Getenv("REDIS_ADDRESS")); addr != "" {
		connectCtx, cancel := context.WithTimeout(sigCtx, config.DurationFromEnv("REDIS_CONNECT_TIMEOUT", 30*time.Second))
		client, err := config.ConnectRedisWithRetry(connectCtx, addr, config.IntFromEnv("REDIS_CONNECT_ATTEMPTS", 5))
		cancel()
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "redis"}).Warn("falling back to in-memory cache: " + err.Error())
		} else {
			rdb = client
		}
	}
	if rdb != nil {
		handler.Cache = dataapi.NewRedisCache(rdb, config.GetRedisLock())
		if config.BoolFromEnv("RATE_LIMIT_ENABLED", false) {
			routerOpts.RateLimiter = middlewares.NewRateLimiter(
				rdb,
				int64(config.IntFromEnv("RATE_LIMIT_MAX_REQUESTS", 600)),
				config.DurationFromEnv("RATE_LIMIT_WINDOW_SECONDS", time.Minute),
			)
		}
	} else {
		handler.Cache = dataapi.NewMemoryCache(handler.CacheTTL)
	}

	r := dataapi.NewRouter(handler, routerOpts)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	logger.WithFields(logrus.Fields{
		"field": "http",
		"port":  port,
		"redis": rdb != nil,
	}).Info("data api listening on :" + port)

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb != nil {
		_ = rdb.Close()
	}
}
