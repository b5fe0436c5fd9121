package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/mmdatafocus/banking_datagen/models"
	"github.com/mmdatafocus/banking_datagen/utils"
)

// ErrUpstreamUnavailable covers an unreachable data API, a non-2xx reply, or a malformed body.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// DatasetSource produces the dataset an ingest run publishes.
type DatasetSource interface {
	FetchDataset(ctx context.Context, req models.GenerateDataRequest) (*models.Dataset, error)
}

// DataAPIClient fetches datasets from POST /generate_data.
type DataAPIClient struct {
	URL  string
	HTTP *http.Client
	// MaxAttempts retries transport errors and 5xx replies. Zero means one attempt.
	MaxAttempts uint
	RetryDelay  time.Duration
}

func NewDataAPIClient(url string) *DataAPIClient {
	return &DataAPIClient{
		URL:         url,
		HTTP:        &http.Client{Timeout: 5 * time.Minute},
		MaxAttempts: 1,
		RetryDelay:  time.Second,
	}
}

func (c *DataAPIClient) String() string {
	return c.URL
}

type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

func (c *DataAPIClient) FetchDataset(ctx context.Context, req models.GenerateDataRequest) (*models.Dataset, error) {
	attempts := c.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	var ds *models.Dataset
	err := retry.Do(
		func() error {
			var ferr error
			ds, ferr = c.fetchOnce(ctx, req)
			return ferr
		},
		retry.Attempts(attempts),
		retry.Delay(c.RetryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var r retryableError
			return errors.As(err, &r)
		}),
	)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func (c *DataAPIClient) fetchOnce(ctx context.Context, req models.GenerateDataRequest) (*models.Dataset, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		httpReq.Header.Set("x-correlation-id", cid)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, retryableError{fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryableError{fmt.Errorf("%w: read body: %v", ErrUpstreamUnavailable, err)}
	}

	var out models.GenerateDataResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && out.Message != "" {
			msg = out.Message
		}
		err := fmt.Errorf("%w: status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, msg)
		if resp.StatusCode >= 500 {
			return nil, retryableError{err}
		}
		return nil, err
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUpstreamUnavailable, decodeErr)
	}
	if !out.Success || out.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, out.Message)
	}
	return out.Data, nil
}

// LocalDatasetSource generates in-process instead of calling the data API.
type LocalDatasetSource struct{}

func (LocalDatasetSource) FetchDataset(ctx context.Context, req models.GenerateDataRequest) (*models.Dataset, error) {
	return models.GenerateDataset(req.Options())
}

func (LocalDatasetSource) String() string {
	return "local"
}
