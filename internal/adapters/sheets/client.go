// Package sheets downloads the committee's published spreadsheets as CSV,
// keeps each dataset in a TTL cache and re-warms the caches on a schedule.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pauloqxm/portal-comite/internal/domain/table"
	"github.com/pauloqxm/portal-comite/pkg/logger"
	"github.com/pauloqxm/portal-comite/pkg/metrics"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 32 << 20
	userAgent      = "portal-comite/1.0"
)

// Client fetches published spreadsheet exports.
type Client struct {
	http    *http.Client
	timeout time.Duration
	logger  logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a spreadsheet client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:    &http.Client{},
		timeout: defaultTimeout,
		logger:  logger.Get().Named("sheets"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads url and parses it as CSV. dataset labels logs and metrics.
func (c *Client) Fetch(ctx context.Context, dataset, url string) (*table.Table, error) {
	if url == "" {
		metrics.RecordSheetFetchError(dataset, "config")
		return nil, fmt.Errorf("%w: %s", ErrEmptyURL, dataset)
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		metrics.RecordSheetFetchError(dataset, "request")
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, dataset, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/csv")

	resp, err := c.http.Do(req)
	if err != nil {
		reason := "transport"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.RecordSheetFetchError(dataset, reason)
		c.logger.Warn(ctx, "sheet fetch failed", logger.String("dataset", dataset), logger.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, dataset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		metrics.RecordSheetFetchError(dataset, "status")
		c.logger.Warn(ctx, "sheet fetch rejected",
			logger.String("dataset", dataset),
			logger.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: %s: %d", ErrStatus, dataset, resp.StatusCode)
	}

	t, err := table.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.RecordSheetFetchError(dataset, "parse")
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, dataset, err)
	}

	took := time.Since(start)
	metrics.RecordSheetFetch(dataset, float64(took.Milliseconds()), t.Len())
	c.logger.Debug(ctx, "sheet fetched",
		logger.String("dataset", dataset),
		logger.Int("rows", t.Len()),
		logger.Duration("took", took),
	)
	return t, nil
}
