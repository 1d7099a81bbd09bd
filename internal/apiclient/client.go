// Package apiclient talks to the Schedulink REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"schedulink/internal/metrics"
	"schedulink/internal/models"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 10 * time.Second

	cachePrefix = "schedulink:"
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	Limiter   *rate.Limiter
	Logger    *zerolog.Logger
}

// Client is an HTTP client for the scheduling API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

// New constructs a client. Zero options fall back to localhost:8000 and a 10s timeout.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		userAgent:  opts.UserAgent,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    opts.Limiter,
		logger:     logger,
	}
}

// BaseURL returns the API root this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UseRedisCache configures optional Redis caching for GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, cachePrefix+key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	metrics.IncCacheHit()
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, cachePrefix+key, data, c.cacheTTL).Err()
}

// invalidate drops cached entries whose keys start with any of prefixes.
func (c *Client) invalidate(ctx context.Context, prefixes ...string) {
	if c.redis == nil {
		return
	}
	for _, p := range prefixes {
		iter := c.redis.Scan(ctx, 0, cachePrefix+p+"*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			c.logger.Warn().Err(err).Str("prefix", p).Msg("cache scan failed")
			continue
		}
		if len(keys) > 0 {
			_ = c.redis.Del(ctx, keys...).Err()
		}
	}
}

// call describes one REST request.
type call struct {
	op       string
	method   string
	path     string
	body     any
	fallback string
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &RemoteError{Op: cl.op, Detail: cl.fallback, Err: err}
		}
	}

	var reader io.Reader = http.NoBody
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return &RemoteError{Op: cl.op, Detail: cl.fallback, Err: fmt.Errorf("encode body: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, reader)
	if err != nil {
		return &RemoteError{Op: cl.op, Detail: cl.fallback, Err: err}
	}
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := c.addHeaders(req)

	start := time.Now()
	log := c.logger.With().
		Str("op", cl.op).
		Str("method", cl.method).
		Str("path", cl.path).
		Str("request_id", requestID).
		Logger()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveAPIRequest(cl.op, "transport_error", time.Since(start))
		log.Warn().Err(err).Dur("took", time.Since(start)).Msg("api request failed")
		return &RemoteError{Op: cl.op, Detail: cl.fallback, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveAPIRequest(cl.op, "transport_error", time.Since(start))
		return &RemoteError{Op: cl.op, Status: resp.StatusCode, Detail: cl.fallback, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode >= 300 {
		rerr := remoteError(cl.op, cl.fallback, resp.StatusCode, body, nil)
		metrics.ObserveAPIRequest(cl.op, fmt.Sprintf("http_%d", resp.StatusCode), time.Since(start))
		log.Info().Int("status", resp.StatusCode).Str("detail", rerr.Detail).Dur("took", time.Since(start)).Msg("api request rejected")
		return rerr
	}

	metrics.ObserveAPIRequest(cl.op, "ok", time.Since(start))
	log.Debug().Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("api request")

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &RemoteError{Op: cl.op, Status: resp.StatusCode, Detail: cl.fallback, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) addHeaders(req *http.Request) string {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	id := uuid.NewString()
	req.Header.Set("X-Request-ID", id)
	return id
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) (*models.Health, error) {
	var resp models.Health
	if err := c.do(ctx, call{op: "health", method: http.MethodGet, path: "/health", fallback: msgUnavailable}, &resp); err != nil {
		var re *RemoteError
		if errors.As(err, &re) {
			re.Detail = msgUnavailable
		}
		return nil, err
	}
	return &resp, nil
}
