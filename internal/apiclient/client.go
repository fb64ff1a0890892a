// Package apiclient talks to the NetPulse backend API over HTTP/JSON.
package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/netpulse/webclient/internal/config"
	"github.com/netpulse/webclient/internal/model"
	"github.com/netpulse/webclient/internal/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	suggestPath   = "/search/suggest"
	searchPath    = "/search"
	activeAdsPath = "/ads/active"

	maxBodyBytes = 1 << 20
)

type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Breaker    BreakerConfig
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *CircuitBreaker
	logger  *util.Logger
	metrics *util.Metrics
	tracer  trace.Tracer
}

// NewClient builds a client for config.BaseURL. logger and metrics may be nil.
func NewClient(config *ClientConfig, logger *util.Logger, metrics *util.Metrics) *Client {
	if logger == nil {
		logger = util.NewNopLogger()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	breakerConfig := config.Breaker
	if breakerConfig.FailureThreshold == 0 && breakerConfig.Timeout == 0 {
		breakerConfig = DefaultBreakerConfig()
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		http:    httpClient,
		breaker: NewCircuitBreaker(breakerConfig),
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("netpulse/apiclient"),
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) BreakerState() BreakerState {
	return c.breaker.State()
}

// Suggest calls GET /search/suggest?q=&limit=.
func (c *Client) Suggest(ctx context.Context, query string, limit int) ([]model.SuggestionItem, error) {
	ctx, span := c.tracer.Start(ctx, "apiclient.Suggest",
		trace.WithAttributes(
			attribute.String("query", query),
			attribute.Int("limit", limit),
		))
	defer span.End()

	body, err := c.get(ctx, suggestPath, queryParams(query, limit))
	if err != nil {
		recordSpanError(span, err)
		return []model.SuggestionItem{}, err
	}

	items, err := model.DecodeSuggestions(body)
	if err != nil {
		recordSpanError(span, err)
		return items, util.NewAppError(util.ErrMalformedResponse.Code, util.ErrMalformedResponse.Message, err.Error())
	}

	span.SetAttributes(attribute.Int("result_count", len(items)))
	return items, nil
}

// Search calls GET /search?q=&limit=. Both the {"items":[...]} envelope and
// a bare array are accepted.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]model.SearchResultItem, error) {
	ctx, span := c.tracer.Start(ctx, "apiclient.Search",
		trace.WithAttributes(
			attribute.String("query", query),
			attribute.Int("limit", limit),
		))
	defer span.End()

	body, err := c.get(ctx, searchPath, queryParams(query, limit))
	if err != nil {
		recordSpanError(span, err)
		return []model.SearchResultItem{}, err
	}

	items, err := model.DecodeSearchResults(body)
	if err != nil {
		recordSpanError(span, err)
		return items, util.NewAppError(util.ErrMalformedResponse.Code, util.ErrMalformedResponse.Message, err.Error())
	}

	span.SetAttributes(attribute.Int("result_count", len(items)))
	return items, nil
}

// ActiveAds calls GET /ads/active.
func (c *Client) ActiveAds(ctx context.Context) ([]model.AdSlotRecord, error) {
	ctx, span := c.tracer.Start(ctx, "apiclient.ActiveAds")
	defer span.End()

	body, err := c.get(ctx, activeAdsPath, "")
	if err != nil {
		recordSpanError(span, err)
		return []model.AdSlotRecord{}, err
	}

	records, err := model.DecodeActiveAds(body)
	if err != nil {
		recordSpanError(span, err)
		return records, util.NewAppError(util.ErrMalformedResponse.Code, util.ErrMalformedResponse.Message, err.Error())
	}

	span.SetAttributes(attribute.Int("result_count", len(records)))
	return records, nil
}

func (c *Client) get(ctx context.Context, path string, rawQuery string) ([]byte, error) {
	if !c.breaker.AllowRequest() {
		return nil, util.ErrCircuitOpen
	}

	endpoint := c.baseURL + path
	if rawQuery != "" {
		endpoint += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(path, 0, start)
		c.breaker.RecordFailure()
		c.logger.Debugw("Backend request failed", "path", path, "error", err)
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.observe(path, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		if resp.StatusCode >= 500 {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
		c.logger.Debugw("Backend returned non-OK status", "path", path, "status", resp.StatusCode)
		return nil, util.BackendStatusError(path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("read %s body: %w", path, err)
	}

	c.breaker.RecordSuccess()
	return body, nil
}

func (c *Client) observe(path string, status int, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordBackendRequest(path, status, time.Since(start))
	}
}

// queryParams keeps q ahead of limit, matching the URLs the web frontend
// issues.
func queryParams(query string, limit int) string {
	return "q=" + url.QueryEscape(query) + "&limit=" + strconv.Itoa(limit)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// ConfigFromAPI maps the api config section onto a ClientConfig.
func ConfigFromAPI(api config.APIConfig) *ClientConfig {
	return &ClientConfig{
		BaseURL: api.BaseURL,
		Timeout: api.Timeout,
		Breaker: BreakerConfig{
			FailureThreshold: api.Breaker.FailureThreshold,
			SuccessThreshold: api.Breaker.SuccessThreshold,
			Timeout:          api.Breaker.OpenTimeout,
		},
	}
}
