// Package client provides the core DigiKey HTTP client with bounded retry,
// exponential backoff, and credential refresh on failure.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Zeeshan138063/digikey-client/pkg/auth"
	"github.com/Zeeshan138063/digikey-client/pkg/cache"
	"github.com/Zeeshan138063/digikey-client/pkg/catalog"
)

// API base URLs. The sandbox flag in Config selects the test environment.
const (
	ProductionBaseURL = "https://api.digikey.com"
	SandboxBaseURL    = "https://sandbox-api.digikey.com"

	keywordSearchPath = "/products/v4/search/keyword"
)

// Prometheus metrics for request operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digikey_requests_total",
		Help: "Total DigiKey requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "digikey_request_duration_seconds",
		Help:    "DigiKey request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})
)

// Pacer gates outgoing requests and observes vendor rate limit headers.
// Implemented by ratelimit.Pacer.
type Pacer interface {
	Wait(ctx context.Context) error
	Observe(headers http.Header)
}

// Locale is the site/language/currency triple sent on every request.
type Locale struct {
	Site     string
	Language string
	Currency string
}

// DefaultLocale returns the US/en/USD locale.
func DefaultLocale() Locale {
	return Locale{Site: "US", Language: "en", Currency: "USD"}
}

// Config holds the client configuration.
type Config struct {
	// ClientID is sent as X-DIGIKEY-Client-Id on every request.
	ClientID string

	// Credentials supplies the bearer token for each request.
	Credentials auth.Provider

	// BaseURL overrides the API base URL (testing). Empty selects
	// production or sandbox depending on Sandbox.
	BaseURL string

	// Sandbox routes requests to the test environment.
	Sandbox bool

	// Locale is the site/language/currency triple.
	Locale Locale

	// Retry controls the backoff loop shared by both request paths.
	Retry RetryConfig

	// Cache, when non-nil, serves repeated detail lookups without
	// touching the API.
	Cache *cache.Manager

	// Pacer, when non-nil, spaces requests and tracks the vendor's
	// rate limit budget.
	Pacer Pacer

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(clientID string, creds auth.Provider) Config {
	return Config{
		ClientID:    clientID,
		Credentials: creds,
		Locale:      DefaultLocale(),
		Retry:       DefaultRetryConfig(),
		Timeout:     30 * time.Second,
	}
}

// Client issues keyword-search and product-detail requests against the
// DigiKey product API.
type Client struct {
	httpClient *http.Client
	config     Config
	baseURL    string
	logger     zerolog.Logger
	sleep      sleepFunc
}

// New creates a new DigiKey client.
func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client id is required")
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credential provider is required")
	}
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Locale == (Locale{}) {
		cfg.Locale = DefaultLocale()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = ProductionBaseURL
		if cfg.Sandbox {
			baseURL = SandboxBaseURL
		}
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		baseURL:    baseURL,
		logger:     log.With().Str("component", "digikey-client").Logger(),
		sleep:      waitFor,
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetSleep replaces the backoff sleep (for testing).
func (c *Client) SetSleep(sleep sleepFunc) {
	c.sleep = sleep
}

// BaseURL returns the resolved API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// keywordSearchBody mirrors the v4 keyword-search request schema.
type keywordSearchBody struct {
	Keywords             string         `json:"Keywords"`
	Limit                int            `json:"Limit"`
	Offset               int            `json:"Offset"`
	FilterOptionsRequest *filterOptions `json:"FilterOptionsRequest,omitempty"`
	SortOptions          sortOptions    `json:"SortOptions"`
}

type filterOptions struct {
	ManufacturerFilter []manufacturerFilter `json:"ManufacturerFilter"`
}

type manufacturerFilter struct {
	ID int `json:"Id"`
}

type sortOptions struct {
	Field     string `json:"Field"`
	SortOrder string `json:"SortOrder"`
}

// keywordSearchResult is the subset of the response the core reads.
type keywordSearchResult struct {
	ProductsCount int                    `json:"ProductsCount"`
	Products      []catalog.VendorRecord `json:"Products"`
}

// Search performs one keyword-search page request with retry and refresh.
//
// On 2xx the parsed page is returned; retry state never carries over to the
// next logical call. Exhaustion returns ErrRetryExhausted and a zero
// response; callers must check the error rather than the record count, since
// an empty page is a legitimate result.
func (c *Client) Search(ctx context.Context, req catalog.SearchRequest) (catalog.SearchResponse, error) {
	body := keywordSearchBody{
		Keywords: req.Keyword,
		Limit:    req.Limit,
		Offset:   req.Offset,
		SortOptions: sortOptions{
			Field:     "Supplier",
			SortOrder: "Descending",
		},
	}
	if req.ManufacturerID > 0 {
		body.FilterOptionsRequest = &filterOptions{
			ManufacturerFilter: []manufacturerFilter{{ID: req.ManufacturerID}},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return catalog.SearchResponse{}, fmt.Errorf("marshal search request: %w", err)
	}

	var result keywordSearchResult
	err = retryWithRefresh(ctx, c.config.Retry, keywordSearchPath, c.logger, c.sleep,
		func() error {
			return c.doJSON(ctx, http.MethodPost, c.baseURL+keywordSearchPath, payload, false, &result)
		},
		c.refreshCredential,
	)
	if err != nil {
		return catalog.SearchResponse{}, err
	}

	c.logger.Info().
		Str("keyword", req.Keyword).
		Int("offset", req.Offset).
		Int("limit", req.Limit).
		Int("total_count", result.ProductsCount).
		Int("records", len(result.Products)).
		Msg("Keyword search page fetched")

	return catalog.SearchResponse{
		TotalCount: result.ProductsCount,
		Records:    result.Products,
	}, nil
}

// ProductDetails fetches detail data for one product number.
//
// A 404 means the product number does not exist; it short-circuits to
// ErrNotFound with zero retries, zero sleeps, and zero refreshes. Any other
// failure goes through the same retry loop as Search.
func (c *Client) ProductDetails(ctx context.Context, productNumber string, manufacturerID int) (catalog.VendorRecord, error) {
	detailURL := c.baseURL + "/products/v4/search/" + url.PathEscape(productNumber) + "/productdetails"
	if manufacturerID > 0 {
		detailURL += "?manufacturerId=" + url.QueryEscape(fmt.Sprint(manufacturerID))
	}

	cacheKey := cache.Key{ProductNumber: productNumber, ManufacturerID: manufacturerID}
	if c.config.Cache != nil {
		if record, err := c.config.Cache.Get(ctx, cacheKey); err == nil {
			c.logger.Debug().Str("product_number", productNumber).Msg("Detail served from cache")
			return record, nil
		} else if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("product_number", productNumber).Msg("Cache get error")
		}
	}

	var record catalog.VendorRecord
	err := retryWithRefresh(ctx, c.config.Retry, "/products/v4/search/{pn}/productdetails", c.logger, c.sleep,
		func() error {
			return c.doJSON(ctx, http.MethodGet, detailURL, nil, true, &record)
		},
		c.refreshCredential,
	)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.logger.Warn().Str("product_number", productNumber).Msg("Product not found")
			return nil, ErrNotFound
		}
		return nil, err
	}

	if c.config.Cache != nil {
		if err := c.config.Cache.Set(ctx, cacheKey, record); err != nil {
			c.logger.Warn().Err(err).Str("product_number", productNumber).Msg("Failed to cache detail")
		}
	}

	return record, nil
}

// refreshCredential asks the provider for a fresh token.
func (c *Client) refreshCredential(ctx context.Context) error {
	_, err := c.config.Credentials.Refresh(ctx)
	return err
}

// doJSON performs one HTTP attempt and decodes a 2xx JSON body into out.
// detailPath switches 404 handling from retryable-status to terminal.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, payload []byte, detailPath bool, out any) error {
	endpoint := endpointLabel(rawURL)

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	cred, err := c.config.Credentials.Current(ctx)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "auth_error").Inc()
		return &APIError{ErrorClass: ErrorClassAuth, Message: "obtain credential", Err: err}
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, cred.AccessToken, payload != nil)

	if c.config.Pacer != nil {
		if err := c.config.Pacer.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
	}

	// Request metadata is logged with the bearer token redacted.
	c.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Str("client_id", c.config.ClientID).
		Msg("Sending request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	if c.config.Pacer != nil {
		c.config.Pacer.Observe(resp.Header)
	}

	if detailPath && resp.StatusCode == http.StatusNotFound {
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNotFound,
			Message:    "not found",
			Err:        ErrNotFound,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassStatus,
			Message:    resp.Status,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{ErrorClass: ErrorClassNetwork, Message: "read response", Err: err}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status_code", resp.StatusCode).
		Msg("Request successful")

	return nil
}

// setHeaders applies the client identifier, locale triple, content
// negotiation, and bearer authorization.
func (c *Client) setHeaders(req *http.Request, token string, hasBody bool) {
	req.Header.Set("X-DIGIKEY-Client-Id", c.config.ClientID)
	req.Header.Set("X-DIGIKEY-Locale-Site", c.config.Locale.Site)
	req.Header.Set("X-DIGIKEY-Locale-Language", c.config.Locale.Language)
	req.Header.Set("X-DIGIKEY-Locale-Currency", c.config.Locale.Currency)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
}

// endpointLabel strips host and query so metric labels stay low-cardinality.
func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid"
	}
	return u.Path
}
