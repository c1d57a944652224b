// Package scanapi talks to the remote Can I Click It? scan service.
package scanapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
	"github.com/bryanwahyu/caniclickit/internal/domain/scanerrors"
	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

const (
	DefaultBaseURL = "http://localhost:8880"
	DefaultTimeout = 10 * time.Second

	// identifies this client to the service
	clientSchema = "legacy"
)

var _ scans.Scanner = (*Client)(nil)

type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	UserAgent    string
}

// Client reads the service address and key from the settings store on
// every request, so a change made in the popup applies immediately.
type Client struct {
	http     *resty.Client
	settings platform.Storage
	defaults Config
	logger   *zap.Logger
}

// New builds a client. settings may be nil, in which case cfg is used as is.
func New(cfg Config, settings platform.Storage, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	retry := retryablehttp.NewClient()
	retry.RetryMax = cfg.Retries
	if cfg.RetryWaitMin > 0 {
		retry.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		retry.RetryWaitMax = cfg.RetryWaitMax
	}
	retry.Logger = leveled{logger.Sugar()}
	// keep the last response so its status and body reach the caller
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler

	r := resty.NewWithClient(retry.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-Client-Schema", clientSchema)
	if cfg.UserAgent != "" {
		r.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Client{http: r, settings: settings, defaults: cfg, logger: logger}
}

// Scan submits one URL for analysis.
func (c *Client) Scan(ctx context.Context, req scans.Request) (*scans.ScanResult, error) {
	var out scans.ScanResult
	if err := c.do(ctx, http.MethodPost, "/v1/scan", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PageTrust asks for the trust score of a whole page.
func (c *Client) PageTrust(ctx context.Context, pageURL string) (*scans.PageTrust, error) {
	var out scans.PageTrust
	if err := c.do(ctx, http.MethodGet, "/v1/page-trust", map[string]string{"url": pageURL}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type endpoint struct {
	base string
	key  string
}

func (c *Client) endpoint(ctx context.Context) endpoint {
	ep := endpoint{base: c.defaults.BaseURL, key: c.defaults.APIKey}
	if c.settings != nil {
		var base, key string
		if err := platform.GetOr(ctx, c.settings, platform.KeyAPIBaseURL, &base); err != nil {
			c.logger.Warn("read api base url", zap.Error(err))
		}
		if err := platform.GetOr(ctx, c.settings, platform.KeyAPIKey, &key); err != nil {
			c.logger.Warn("read api key", zap.Error(err))
		}
		if strings.TrimSpace(base) != "" {
			ep.base = base
		}
		if key != "" {
			ep.key = key
		}
	}
	ep.base = strings.TrimRight(ep.base, "/")
	return ep
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	ep := c.endpoint(ctx)
	req := c.http.R().SetContext(ctx)
	if ep.key != "" {
		req.SetHeader("X-API-Key", ep.key)
	}
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, ep.base+path)
	if err != nil {
		if ctx.Err() != nil {
			return scanerrors.Unreachable(ctx.Err())
		}
		c.logger.Warn("scan service unreachable", zap.String("path", path), zap.Error(err))
		return scanerrors.Unreachable(err)
	}
	if resp.IsError() {
		apiErr := scanerrors.FromStatus(resp.StatusCode(), errorDetail(resp.Body()))
		c.logger.Warn("scan service error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()),
			zap.String("detail", apiErr.Detail),
		)
		return apiErr
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// errorDetail extracts "detail", falling back to "message". Non-string
// details (validation error lists) are ignored.
func errorDetail(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	var detail string
	if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &detail) == nil && detail != "" {
		return detail
	}
	return payload.Message
}

// IsUnreachable reports whether err is a transport failure.
func IsUnreachable(err error) bool {
	var apiErr *scanerrors.APIError
	return errors.As(err, &apiErr) && apiErr.Transport()
}

type leveled struct{ s *zap.SugaredLogger }

func (l leveled) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveled) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveled) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveled) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
