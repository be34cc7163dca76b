// Package upstream talks to the dashboard REST API that owns orders and
// members. It is a thin transport: no caching, no retries.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kpidash/backend/internal/domain/kpi"
	"github.com/kpidash/backend/internal/infrastructure/telemetry"
)

// Upstream errors
var (
	ErrTokenExpired            = errors.New("upstream: bearer token has expired")
	ErrUpstreamUnavailable     = errors.New("upstream: service unavailable")
	ErrUpstreamRequestFailed   = errors.New("upstream: request failed")
	ErrUpstreamInvalidResponse = errors.New("upstream: invalid response")
)

// API paths
const (
	pathOrders      = "/orders"
	pathMembers     = "/members"
	pathMemberSync  = "/members/sync"
	pathRefunds     = "/member/refunds"
	maxErrorPreview = 256
)

// RefundRequest asks the upstream API to refund a membership
type RefundRequest struct {
	MembershipID int64  `json:"membership_id" binding:"required,gt=0"`
	MemberID     int64  `json:"member_id,omitempty"`
	Count        int    `json:"count,omitempty" binding:"omitempty,gte=0"`
	Reason       string `json:"reason,omitempty" binding:"max=500"`
}

// Client is the dashboard API client
type Client struct {
	config     Config
	httpClient *http.Client
	now        func() time.Time
	logger     *zap.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClock replaces the clock used for token expiry checks
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used for skipped-record warnings
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client with the given configuration
func NewClient(config Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListOrders fetches the full order collection
func (c *Client) ListOrders(ctx context.Context) ([]kpi.Order, error) {
	body, err := c.doRequest(ctx, http.MethodGet, pathOrders, nil)
	if err != nil {
		return nil, err
	}
	orders, skipped, err := decodeList[kpi.Order](body)
	c.warnSkipped(pathOrders, skipped)
	return orders, err
}

// ListMembers fetches the full member collection with memberships
func (c *Client) ListMembers(ctx context.Context) ([]kpi.Member, error) {
	body, err := c.doRequest(ctx, http.MethodGet, pathMembers, nil)
	if err != nil {
		return nil, err
	}
	members, skipped, err := decodeList[kpi.Member](body)
	c.warnSkipped(pathMembers, skipped)
	return members, err
}

// SyncMembers asks the upstream API to resynchronize members. The raw
// response is returned for the caller to relay.
func (c *Client) SyncMembers(ctx context.Context) (json.RawMessage, error) {
	body, err := c.doRequest(ctx, http.MethodPost, pathMemberSync, struct{}{})
	if err != nil {
		return nil, err
	}
	return rawOrNull(body), nil
}

// RefundMembership posts a refund. The raw response is returned for the
// caller to relay.
func (c *Client) RefundMembership(ctx context.Context, req RefundRequest) (json.RawMessage, error) {
	if req.MembershipID <= 0 {
		return nil, fmt.Errorf("%w: membership id is required", ErrUpstreamRequestFailed)
	}
	body, err := c.doRequest(ctx, http.MethodPost, pathRefunds, req)
	if err != nil {
		return nil, err
	}
	return rawOrNull(body), nil
}

// doRequest performs an HTTP request against the API root inside a client
// span. Trace context is propagated to the upstream API.
func (c *Client) doRequest(ctx context.Context, method, path string, payload any) (body []byte, err error) {
	ctx, span := telemetry.StartSpan(ctx, "upstream "+method+" "+path,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("http.request.method", method),
		telemetry.WithAttribute("url.path", path),
	)
	defer func() {
		telemetry.RecordError(span, err)
		if err == nil {
			telemetry.SetAttribute(span, "http.response.body.size", len(body))
		}
		span.End()
	}()

	token := TokenFromContext(ctx)
	if token == "" {
		token = normalizeToken(c.config.Token)
	}
	if err := checkExpiry(token, c.now()); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("upstream: failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	telemetry.SetAttribute(span, "http.response.status_code", resp.StatusCode)

	body, err = io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: %s %s: HTTP %d", ErrUpstreamUnavailable, method, path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s %s: HTTP %d: %s", ErrUpstreamRequestFailed, method, path, resp.StatusCode, preview(body))
	}
	return body, nil
}

func (c *Client) warnSkipped(path string, skipped []error) {
	if len(skipped) == 0 {
		return
	}
	c.logger.Warn("Skipped malformed upstream records",
		zap.String("path", path),
		zap.Int("skipped", len(skipped)),
		zap.Error(skipped[0]),
	)
}

// decodeList accepts either a bare JSON array or a {"data": [...]} envelope.
// Records that fail to decode are skipped and returned as errors; only a
// body that is not a list fails the call.
func decodeList[T any](body []byte) ([]T, []error, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil, nil
	}

	if trimmed[0] != '[' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrUpstreamInvalidResponse, err)
		}
		trimmed = bytes.TrimSpace(envelope.Data)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return []T{}, nil, nil
		}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUpstreamInvalidResponse, err)
	}
	items := make([]T, 0, len(raw))
	var skipped []error
	for i, r := range raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			skipped = append(skipped, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		items = append(items, item)
	}
	return items, skipped, nil
}

func rawOrNull(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return json.RawMessage("null")
	}
	return json.RawMessage(trimmed)
}

func preview(body []byte) string {
	if len(body) > maxErrorPreview {
		return string(body[:maxErrorPreview]) + "..."
	}
	return string(body)
}
