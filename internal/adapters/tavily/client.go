// Package tavily is a small client for the Tavily search and extract REST API.
package tavily

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"advisor/internal/adapters/config"
	"advisor/internal/adapters/ratelimit"
	"advisor/internal/metrics"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

const (
	serviceName = "tavily"

	endpointSearch  = "search"
	endpointExtract = "extract"

	maxErrorBody = 4 << 10
)

// Cache stores decoded responses. *redis.Client satisfies it.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Client calls the Tavily API with rate limiting and optional response caching
type Client struct {
	apiKey   string
	baseURL  string
	cacheTTL time.Duration

	http    *http.Client
	limiter *ratelimit.MultiLimiter
	cache   Cache
	log     *logger.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithCache enables response caching
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a Tavily client
func NewClient(cfg config.TavilyConfig, opts ...Option) *Client {
	limiter := ratelimit.NewMultiLimiter()
	limiter.AddLimiter("global", ratelimit.NewLimiter("tavily-global", cfg.RequestsPerMinute))

	c := &Client{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		cacheTTL: cfg.CacheTTL,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  limiter,
		log:      logger.Get().With("component", "tavily"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs a web search
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.NewValidationError("query", "must not be empty", req.Query)
	}

	var resp SearchResponse
	if err := c.call(ctx, endpointSearch, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Extract fetches the raw content of the given pages
func (c *Client) Extract(ctx context.Context, urls []string) (*ExtractResponse, error) {
	if len(urls) == 0 {
		return nil, errors.NewValidationError("urls", "at least one url is required", urls)
	}

	var resp ExtractResponse
	if err := c.call(ctx, endpointExtract, ExtractRequest{URLs: urls}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) call(ctx context.Context, endpoint string, body, dest interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "tavily %s: marshal request", endpoint)
	}

	key := cacheKey(endpoint, payload)
	if c.cache != nil {
		err := c.cache.Get(ctx, key, dest)
		switch {
		case err == nil:
			metrics.RecordCacheHit(serviceName, endpoint)
			c.log.Debugw("Cache hit", "endpoint", endpoint, "key", key)
			return nil
		case !errors.Is(err, errors.ErrNotFound):
			// unreadable entry, drop it so the fresh response replaces it
			c.log.Warnw("Evicting unreadable cache entry", "endpoint", endpoint, "key", key, "error", err)
			if err := c.cache.Delete(ctx, key); err != nil {
				c.log.Warnw("Failed to evict cache entry", "endpoint", endpoint, "error", err)
			}
		}
	}

	if err := c.limiter.Wait(ctx, "global"); err != nil {
		return err
	}

	start := time.Now()
	err = c.post(ctx, endpoint, payload, dest)
	metrics.RecordExternalAPICall(serviceName, endpoint, time.Since(start), err)
	if err != nil {
		return err
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if err := c.cache.Set(ctx, key, dest, c.cacheTTL); err != nil {
			c.log.Warnw("Failed to cache response", "endpoint", endpoint, "error", err)
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload []byte, dest interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "tavily %s: build request", endpoint)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(errors.ErrTimeout, "tavily %s: %v", endpoint, err)
		}
		return errors.Wrapf(errors.ErrUnavailable, "tavily %s: %v", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(endpoint, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrapf(errors.ErrExternal, "tavily %s: decode response: %v", endpoint, err)
	}
	return nil
}

func statusError(endpoint string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := strings.TrimSpace(string(raw))
	var parsed errorResponse
	if json.Unmarshal(raw, &parsed) == nil && parsed.Detail.Error != "" {
		msg = parsed.Detail.Error
	}

	kind := errors.ErrExternal
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = errors.ErrRateLimitExceeded
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		kind = errors.ErrInvalidInput
	case resp.StatusCode >= http.StatusInternalServerError:
		kind = errors.ErrUnavailable
	}
	return errors.Wrapf(kind, "tavily %s: status %d: %s", endpoint, resp.StatusCode, msg)
}

func cacheKey(endpoint string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return serviceName + ":" + endpoint + ":" + hex.EncodeToString(sum[:])
}
