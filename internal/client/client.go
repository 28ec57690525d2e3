// Package client talks to the ProConnect REST API and maps its failures onto the
// domain error taxonomy.
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
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/locolive/proconnect/internal/config"
	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/metrics"
)

const RequestIDHeader = "X-Request-ID"

// Error codes the server puts next to a 400 to tell validation failures apart
const (
	CodeSelfRequest = "SELF_REQUEST"
	CodeValidation  = "VALIDATION"
)

// APIError is a non-2xx answer. It unwraps to the matching domain error.
type APIError struct {
	Status    int
	Code      string
	Detail    string
	RequestID string
	kind      error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d, code %s): %s", e.kind, e.Status, e.Code, e.Detail)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// kindFor maps an HTTP status and server error code onto the domain taxonomy
func kindFor(status int, code string) error {
	switch {
	case status == http.StatusBadRequest && code == CodeSelfRequest:
		return domain.ErrSelfRequest
	case status == http.StatusBadRequest:
		return domain.ErrValidation
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.ErrUnauthorized
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status == http.StatusConflict:
		return domain.ErrAlreadyRelated
	default:
		return domain.ErrNetwork
	}
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

// WithHTTPClient replaces the default client, typically with an httptest server's
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

func New(cfg config.APIConfig, logger *zap.Logger, opts ...Option) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger.Named("api"),
		token:      cfg.Token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token used for every following request
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type errorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// do sends one request. route is the path template used as the metrics label.
func (c *Client) do(ctx context.Context, method, route, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrNetwork, err)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ClientRequestDuration.WithLabelValues(method, route, "error").Observe(time.Since(start).Seconds())
		c.logger.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.String("request_id", requestID), zap.Error(err))
		return fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	metrics.ClientRequestDuration.WithLabelValues(method, route, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
	c.logger.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.String("request_id", requestID),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err := json.Unmarshal(raw, &eb); err != nil || eb.Detail == "" {
			eb.Detail = http.StatusText(resp.StatusCode)
		}
		return &APIError{
			Status:    resp.StatusCode,
			Code:      eb.Code,
			Detail:    eb.Detail,
			RequestID: requestID,
			kind:      kindFor(resp.StatusCode, eb.Code),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%s %s: decode response: %w: %w", method, path, domain.ErrNetwork, err)
	}
	return nil
}

func pageQuery(page int) url.Values {
	if page < 1 {
		page = 1
	}
	return url.Values{"page": {strconv.Itoa(page)}}
}

// Login exchanges a user id for a development token and starts using it
func (c *Client) Login(ctx context.Context, userID domain.UserID) (*domain.TokenResponse, error) {
	var out domain.TokenResponse
	body := struct {
		UserID domain.UserID `json:"user_id"`
	}{userID}
	if err := c.do(ctx, http.MethodPost, "/auth/token", "/auth/token", nil, body, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.AccessToken)
	return &out, nil
}

// ListUsers reads the user directory discovery draws from
func (c *Client) ListUsers(ctx context.Context, page int) (*domain.Page[domain.UserRef], error) {
	var out domain.Page[domain.UserRef]
	if err := c.do(ctx, http.MethodGet, "/users", "/users", pageQuery(page), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
