package cnel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goodtune/cortes/internal/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public CNEL EP notifications endpoint.
const DefaultBaseURL = "https://api.cnelep.gob.ec/servicios-linea/v1/notificaciones/consultar"

// genericErrorMessage is shown when the API fails without a message of its own.
const genericErrorMessage = "Error en la solicitud"

// UpstreamError is returned when the API reports an error or cannot be reached.
// Message is user-facing text.
type UpstreamError struct {
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Config holds the client configuration.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	CacheSize int
	CacheTTL  time.Duration
}

// Client queries the notifications API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	cache      *expirable.LRU[string, *Result]
	logger     zerolog.Logger
}

// New creates a client. A zero CacheSize or CacheTTL disables the cache.
func New(cfg Config, logger zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("component", "cnel").Logger(),
	}

	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		c.cache = expirable.NewLRU[string, *Result](cfg.CacheSize, nil, cfg.CacheTTL)
	}

	return c
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

func cacheKey(criterion Criterion, id string) string {
	return string(criterion) + "/" + id
}

// Query returns the notifications for id, serving from the cache when a
// fresh entry exists.
func (c *Client) Query(ctx context.Context, criterion Criterion, id string) (*Result, error) {
	if c.cache != nil {
		if r, ok := c.cache.Get(cacheKey(criterion, id)); ok {
			metrics.CacheHits.Inc()
			c.logger.Debug().Str("criterion", string(criterion)).Str("id", id).Msg("Notification cache hit")
			return r, nil
		}
		metrics.CacheMisses.Inc()
	}
	return c.Fetch(ctx, criterion, id)
}

// Fetch always asks the API and refreshes the cache on success.
func (c *Client) Fetch(ctx context.Context, criterion Criterion, id string) (*Result, error) {
	if !criterion.Valid() {
		return nil, fmt.Errorf("%w: unknown search criterion %q", ErrInvalidQuery, criterion)
	}
	if err := ValidateIdentifier(criterion, id); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.get(ctx, criterion, id)
	metrics.UpstreamDuration.WithLabelValues(string(criterion)).Observe(time.Since(start).Seconds())
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			switch {
			case ue.Status == 0 && ue.Err != nil:
				metrics.UpstreamErrors.WithLabelValues("transport").Inc()
			case ue.Status != 0:
				metrics.UpstreamErrors.WithLabelValues("status").Inc()
			default:
				metrics.UpstreamErrors.WithLabelValues("api").Inc()
			}
		}
		c.logger.Warn().Err(err).Str("criterion", string(criterion)).Str("id", id).Msg("Notification query failed")
		return nil, err
	}

	result := &Result{
		Criterion:     criterion,
		Identifier:    id,
		Details:       detailsOf(resp.Notificaciones),
		Notifications: resp.Notificaciones,
	}

	if c.cache != nil {
		c.cache.Add(cacheKey(criterion, id), result)
	}

	c.logger.Debug().
		Str("criterion", string(criterion)).
		Str("id", id).
		Int("notifications", len(result.Notifications)).
		Dur("duration", time.Since(start)).
		Msg("Notification query completed")

	return result, nil
}

// Invalidate drops the cached result for id.
func (c *Client) Invalidate(criterion Criterion, id string) {
	if c.cache != nil {
		c.cache.Remove(cacheKey(criterion, id))
	}
}

// CacheLen returns the number of cached results.
func (c *Client) CacheLen() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

func (c *Client) get(ctx context.Context, criterion Criterion, id string) (*Response, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(id) + "/" + url.PathEscape(string(criterion))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: genericErrorMessage, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, &UpstreamError{
			Status:  httpResp.StatusCode,
			Message: genericErrorMessage,
			Err:     fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &UpstreamError{Message: genericErrorMessage, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if resp.Resp == RespError {
		msg := deref(resp.Mensaje)
		if msg == "" {
			msg = deref(resp.MensajeError)
		}
		if msg == "" {
			msg = genericErrorMessage
		}
		return nil, &UpstreamError{Message: msg}
	}

	return &resp, nil
}
