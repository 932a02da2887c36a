// Package wordpress implements the feed gateway for the WordPress REST API
// (wp-json/wp/v2) with rate limiting, retries and error classification.
package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/feedcache/pkg/feed"
	"github.com/Sternrassler/feedcache/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxResponseBytes caps how much of a response body is read.
const MaxResponseBytes = 100 * 1024 * 1024

// Prometheus metrics for gateway requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_requests_total",
		Help: "Total feed API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feed_request_duration_seconds",
		Help:    "Feed API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	requestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_request_errors_total",
		Help: "Total feed API errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the REST root, e.g. "https://example.com/wp-json/wp/v2"
	BaseURL string

	// UserAgent header sent with every request
	UserAgent string

	// RequestTimeout bounds one HTTP attempt
	RequestTimeout time.Duration

	// Rate limiting (RequestsPerSecond <= 0 disables pacing)
	RequestsPerSecond float64
	Burst             int

	// RetryPolicy overrides RetryConfigForErrorClass
	RetryPolicy RetryPolicy

	// HTTPClient overrides the default HTTP client
	HTTPClient *http.Client
}

// DefaultConfig returns a default configuration for baseURL.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:           baseURL,
		UserAgent:         userAgent,
		RequestTimeout:    30 * time.Second,
		RequestsPerSecond: 5,
		Burst:             10,
	}
}

// Client talks to a WordPress site. It implements feed.Gateway and
// feed.AssetFetcher.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.Limiter
	retry      RetryPolicy
	config     Config
	logger     zerolog.Logger
}

var (
	_ feed.Gateway      = (*Client)(nil)
	_ feed.AssetFetcher = (*Client)(nil)
)

// New creates a new WordPress client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	logger := log.With().Str("component", "wordpress-client").Logger()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	retry := cfg.RetryPolicy
	if retry == nil {
		retry = RetryConfigForErrorClass
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    ratelimit.NewLimiter(cfg.RequestsPerSecond, cfg.Burst, logger),
		retry:      retry,
		config:     cfg,
		logger:     logger,
	}, nil
}

// FetchPage fetches one page of posts under filter. A page past the end of
// the feed yields an empty slice.
func (c *Client) FetchPage(ctx context.Context, filter feed.Filter, page, pageSize int) ([]feed.Item, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be >= 1 (got %d)", page)
	}
	if pageSize <= 0 {
		pageSize = feed.DefaultPageSize
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(pageSize))
	switch filter.Kind {
	case feed.FilterCategory:
		query.Set("categories", strconv.Itoa(filter.CategoryID))
	case feed.FilterSearch:
		query.Set("search", filter.Query)
	}

	var posts []post
	err := c.getJSON(ctx, "posts", c.baseURL+"/posts?"+query.Encode(), &posts)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeInvalidPageNumber {
			c.logger.Debug().Str("filter", filter.String()).Int("page", page).Msg("Page past end of feed")
			return []feed.Item{}, nil
		}
		return nil, err
	}

	items := make([]feed.Item, 0, len(posts))
	for _, p := range posts {
		items = append(items, p.toItem())
	}
	return items, nil
}

// ResolveAuxiliaryResource resolves a media id to its source URL.
func (c *Client) ResolveAuxiliaryResource(ctx context.Context, id int) (feed.AuxResource, error) {
	var m media
	err := c.getJSON(ctx, "media", fmt.Sprintf("%s/media/%d", c.baseURL, id), &m)
	if err != nil {
		var te *feed.TransportError
		if errors.As(err, &te) && te.StatusCode == http.StatusNotFound {
			return feed.AuxResource{}, &feed.NotFoundError{Resource: "media", ID: id}
		}
		return feed.AuxResource{}, err
	}
	if m.SourceURL == "" {
		return feed.AuxResource{}, &feed.NotFoundError{Resource: "media", ID: id}
	}

	return feed.AuxResource{ID: id, ResolvedURL: m.SourceURL}, nil
}

// FetchCategories fetches every category (up to 100, the API's page maximum).
func (c *Client) FetchCategories(ctx context.Context) ([]feed.Category, error) {
	var cats []category
	if err := c.getJSON(ctx, "categories", c.baseURL+"/categories?per_page=100", &cats); err != nil {
		return nil, err
	}

	out := make([]feed.Category, 0, len(cats))
	for _, cat := range cats {
		out = append(out, cat.toCategory())
	}
	return out, nil
}

// FetchAsset downloads the raw bytes at assetURL.
func (c *Client) FetchAsset(ctx context.Context, assetURL string) ([]byte, error) {
	return c.get(ctx, "asset", assetURL, "*/*")
}

// getJSON performs a GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, endpoint, rawURL string, out interface{}) error {
	body, err := c.get(ctx, endpoint, rawURL, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		requestErrorsTotal.WithLabelValues("decode").Inc()
		return &feed.DecodeError{Endpoint: endpoint, Err: err}
	}
	return nil
}

// get performs a GET with rate limiting and retries and returns the body of
// a 2xx response.
func (c *Client) get(ctx context.Context, endpoint, rawURL, accept string) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte
	err := retryWithBackoff(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", accept)

		c.logger.Debug().Str("endpoint", endpoint).Str("url", rawURL).Msg("Executing feed request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			requestErrorsTotal.WithLabelValues(string(feed.ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return &feed.TransportError{Endpoint: endpoint, Class: feed.ErrorClassNetwork, Err: err}
		}
		defer resp.Body.Close()

		c.limiter.UpdateFromResponse(resp.StatusCode, resp.Header)

		data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
		if err != nil {
			requestErrorsTotal.WithLabelValues(string(feed.ErrorClassNetwork)).Inc()
			return &feed.TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Class: feed.ErrorClassNetwork, Err: err}
		}
		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			errClass := classifyStatus(resp.StatusCode)
			requestErrorsTotal.WithLabelValues(string(errClass)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Feed request error")

			return &feed.TransportError{
				Endpoint:   endpoint,
				StatusCode: resp.StatusCode,
				Class:      errClass,
				Err:        parseAPIError(data),
			}
		}

		body = data
		return nil
	})
	if err != nil {
		// Cancellation and timeouts are not retried but fail like any network error
		if ctx.Err() != nil && feed.ClassOf(err) == "" {
			return nil, &feed.TransportError{Endpoint: endpoint, Class: feed.ErrorClassNetwork, Err: err}
		}
		return nil, err
	}

	return body, nil
}

// classifyStatus categorizes an HTTP error status.
func classifyStatus(status int) feed.ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return feed.ErrorClassRateLimit
	case status >= 500:
		return feed.ErrorClassServer
	default:
		return feed.ErrorClassClient
	}
}

// parseAPIError extracts the WordPress error body, or nil if there is none.
func parseAPIError(body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == "" {
		return nil
	}
	return &apiErr
}
