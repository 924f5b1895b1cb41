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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rryowa/dangbai_session/internal/metrics"
	"github.com/rryowa/dangbai_session/internal/models"
)

const (
	defaultTimeout   = 10 * time.Second
	maxErrorBodySize = 1 << 20
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	APIKey  string
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

type TokenSource interface {
	AccessToken() (string, bool)
}

type Refresher interface {
	// Refresh returns an access token that supersedes staleAccessToken.
	Refresh(ctx context.Context, staleAccessToken string) (string, error)
}

// Request is one logical backend call. It may be sent twice: once with the
// current token and once more after a successful refresh.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header

	// JSON is encoded as an application/json body.
	JSON any
	// Body is sent verbatim with ContentType, which is never replaced. Use it
	// for multipart payloads whose content type carries the boundary.
	Body        io.Reader
	ContentType string

	// SkipAuth sends the call without a token and never refreshes.
	SkipAuth bool
	// NoRefresh attaches the token but returns a 401 as is.
	NoRefresh bool
}

func (r Request) encode() ([]byte, string, error) {
	switch {
	case r.JSON != nil && r.Body != nil:
		return nil, "", errors.New("request has both JSON and raw body")
	case r.JSON != nil:
		payload, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, "", err
		}
		return payload, "application/json", nil
	case r.Body != nil:
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, "", err
		}
		return payload, r.ContentType, nil
	default:
		return nil, r.ContentType, nil
	}
}

// Dispatcher sends every authenticated backend call. It attaches the
// current access token and recovers from a 401 by refreshing once.
type Dispatcher struct {
	httpClient *http.Client
	baseURL    *url.URL
	apiKey     string
	tokens     TokenSource
	refresher  Refresher
	log        *zap.SugaredLogger
}

func NewDispatcher(cfg Config, tokens TokenSource, refresher Refresher, log *zap.SugaredLogger) (*Dispatcher, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dispatcher{
		httpClient: cfg.httpClient(),
		baseURL:    base,
		apiKey:     cfg.APIKey,
		tokens:     tokens,
		refresher:  refresher,
		log:        log,
	}, nil
}

// Do returns the response of a 2xx call; the caller closes its body. Any
// other outcome is returned as *APIError.
func (d *Dispatcher) Do(ctx context.Context, r Request) (*http.Response, error) {
	payload, contentType, err := r.encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", r.Method, r.Path, err)
	}

	requestID := uuid.NewString()
	token := ""
	if !r.SkipAuth && d.tokens != nil {
		token, _ = d.tokens.AccessToken()
	}
	canRefresh := !r.SkipAuth && !r.NoRefresh && d.refresher != nil

	for retried := false; ; retried = true {
		resp, err := d.send(ctx, r, requestID, payload, contentType, token)
		if err != nil {
			if retried {
				metrics.RequestRetries.WithLabelValues("transport").Inc()
			}
			return nil, d.fail(r, transportError(err))
		}
		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			if retried {
				metrics.RequestRetries.WithLabelValues("success").Inc()
			}
			return resp, nil
		}

		apiErr := decodeError(resp)
		if retried {
			metrics.RequestRetries.WithLabelValues("rejected").Inc()
			return nil, d.fail(r, apiErr)
		}
		if apiErr.Category != CategoryUnauthorized || !canRefresh {
			return nil, d.fail(r, apiErr)
		}

		d.log.Debugw("Access token rejected, refreshing", "method", r.Method, "path", r.Path, "request_id", requestID)
		fresh, err := d.refresher.Refresh(ctx, token)
		if err != nil && ctx.Err() != nil {
			// The caller gave up waiting; the session itself is untouched.
			metrics.RequestRetries.WithLabelValues("abandoned").Inc()
			return nil, d.fail(r, transportError(err))
		}
		if err != nil {
			metrics.RequestRetries.WithLabelValues("refresh_failed").Inc()
			apiErr.Cause = err
			return nil, d.fail(r, apiErr)
		}
		token = fresh
	}
}

func (d *Dispatcher) send(ctx context.Context, r Request, requestID string, payload []byte, contentType, token string) (*http.Response, error) {
	u := d.baseURL.JoinPath(r.Path)
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		return nil, err
	}

	for k, values := range r.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(models.MwRequestIDHeader, requestID)
	if d.apiKey != "" {
		req.Header.Set(models.MwAPIKeyHeader, d.apiKey)
	}
	if token != "" {
		req.Header.Set(models.MwAuthorizationHeader, models.MwBearerPrefix+token)
	}

	return d.httpClient.Do(req)
}

func (d *Dispatcher) fail(r Request, apiErr *APIError) error {
	metrics.RequestFailures.WithLabelValues(string(apiErr.Category)).Inc()
	d.log.Debugw("Request failed",
		"method", r.Method,
		"path", r.Path,
		"status", apiErr.Status,
		"category", apiErr.Category,
		"error", apiErr,
	)
	return apiErr
}

func decodeError(resp *http.Response) *APIError {
	defer resp.Body.Close()

	apiErr := &APIError{
		Status:   resp.StatusCode,
		Category: Classify(resp.StatusCode),
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil || len(raw) == 0 {
		return apiErr
	}

	var envelope models.APIResponse[json.RawMessage]
	if err := json.Unmarshal(raw, &envelope); err == nil {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Message
		apiErr.Path = envelope.Path
	}
	return apiErr
}

// Call sends r and unwraps the data field of the response envelope.
func Call[T any](ctx context.Context, d *Dispatcher, r Request) (T, error) {
	var zero T

	resp, err := d.Do(ctx, r)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	var envelope models.APIResponse[T]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		if errors.Is(err, io.EOF) {
			return zero, nil
		}
		return zero, fmt.Errorf("decode %s %s response: %w", r.Method, r.Path, err)
	}
	return envelope.Data, nil
}
