package dataapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/banking_datagen/config"
	"github.com/mmdatafocus/banking_datagen/models"
	"github.com/mmdatafocus/banking_datagen/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultCacheTTL = 10 * time.Minute

	successMessage = "Data generated successfully"
)

var tracer = otel.Tracer("banking-datagen/dataapi")

type GenerateFunc func(opts models.GenerateOptions) (*models.Dataset, error)

// Handler serves the dataset generation API.
type Handler struct {
	Logger *logrus.Logger
	// Cache is optional. Only seeded requests are cached.
	Cache    DatasetCache
	CacheTTL time.Duration
	Metrics  *Metrics
	// Generate defaults to models.GenerateDataset.
	Generate GenerateFunc
	// Now defaults to time.Now.
	Now func() time.Time
}

func (h *Handler) generate(opts models.GenerateOptions) (*models.Dataset, error) {
	if h.Generate != nil {
		return h.Generate(opts)
	}
	return models.GenerateDataset(opts)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) cacheTTL() time.Duration {
	if h.CacheTTL > 0 {
		return h.CacheTTL
	}
	return DefaultCacheTTL
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// GenerateData handles POST /generate_data. An empty body takes every default.
func (h *Handler) GenerateData(c *gin.Context) {
	var req models.GenerateDataRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.Metrics.RecordRequest("invalid")
		body := gin.H{"success": false, "message": "invalid request: " + err.Error()}
		if fields := utils.ProcessValidationErrors(err); len(fields) > 0 {
			body["errors"] = fields
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}

	opts := req.Options()
	opts.Now = h.now()
	ctx := c.Request.Context()
	cid, _ := utils.GetCorrelationIdFromContext(ctx)

	key, cacheable := CacheKey(opts)
	cacheable = cacheable && h.Cache != nil
	if cacheable {
		if body, ok := h.cached(c, key); ok {
			h.Metrics.RecordRequest("cached")
			h.Metrics.RecordCacheHit()
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			return
		}
		unlock, err := h.Cache.Lock(ctx, key)
		if err != nil {
			config.LogError(h.Logger, "dataapi", "GenerateData", "cache lock", logrus.Fields{"key": key, "correlation_id": cid}, err)
		} else {
			defer unlock()
			// another request may have filled the key while we waited
			if body, ok := h.cached(c, key); ok {
				h.Metrics.RecordRequest("cached")
				h.Metrics.RecordCacheHit()
				c.Data(http.StatusOK, "application/json; charset=utf-8", body)
				return
			}
		}
	}

	_, span := tracer.Start(ctx, "dataapi.generate", trace.WithAttributes(
		attribute.Int("num_customers", opts.NumCustomers),
		attribute.Int("transactions_per_account", opts.TransactionsPerAccount),
		attribute.Bool("seeded", opts.Seed != nil),
	))
	start := time.Now()
	ds, err := h.generate(opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
	}
	span.End()
	if err != nil {
		status := http.StatusInternalServerError
		outcome := "error"
		if errors.Is(err, models.ErrInvalidArgument) {
			status = http.StatusBadRequest
			outcome = "invalid"
		}
		h.Metrics.RecordRequest(outcome)
		config.LogError(h.Logger, "dataapi", "GenerateData", "generate dataset", logrus.Fields{"correlation_id": cid}, err)
		c.JSON(status, gin.H{"success": false, "message": err.Error()})
		return
	}
	elapsed := time.Since(start)
	counts := ds.Counts()
	h.Metrics.RecordGenerated(counts.Customers, counts.Accounts, counts.Transactions, counts.Loans, elapsed)

	raw, err := utils.MarshalToJSON(models.GenerateDataResponse{
		Success:       true,
		Message:       successMessage,
		DatasetCounts: counts,
		Data:          ds,
	})
	if err != nil {
		h.Metrics.RecordRequest("error")
		config.LogError(h.Logger, "dataapi", "GenerateData", "encode response", logrus.Fields{"correlation_id": cid}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	body := []byte(raw)

	if cacheable {
		if err := h.Cache.Set(ctx, key, body, h.cacheTTL()); err != nil {
			config.LogError(h.Logger, "dataapi", "GenerateData", "cache set", logrus.Fields{"key": key}, err)
		}
	}
	if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{
			"field":          "dataapi",
			"correlation_id": cid,
			"customers":      counts.Customers,
			"accounts":       counts.Accounts,
			"transactions":   counts.Transactions,
			"loans":          counts.Loans,
			"generate_ms":    elapsed.Milliseconds(),
		}).Info("dataset generated")
	}
	h.Metrics.RecordRequest("generated")
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *Handler) cached(c *gin.Context, key string) ([]byte, bool) {
	body, ok, err := h.Cache.Get(c.Request.Context(), key)
	if err != nil {
		config.LogError(h.Logger, "dataapi", "GenerateData", "cache get", logrus.Fields{"key": key}, err)
		return nil, false
	}
	return body, ok
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "not found"})
}
