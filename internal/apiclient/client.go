// Package apiclient talks to the directory REST API and implements the
// gateways the booking core consumes.
package apiclient

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
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/carebook/internal/domainerr"
	"github.com/wolfman30/carebook/internal/observability/metrics"
	"github.com/wolfman30/carebook/internal/session"
	"github.com/wolfman30/carebook/pkg/logging"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 300
	maxBody        = 1 << 20

	headerActingContext = "X-Acting-Context"
	headerIdempotency   = "Idempotency-Key"
)

// Credentials supplies the bearer token and acting context for each
// request. session.Store satisfies it.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	Reauthenticate(ctx context.Context) error
	ActiveRole() session.Role
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	Timeout     time.Duration
	Credentials Credentials
	Metrics     *metrics.BookingMetrics
	Logger      *logging.Logger
	Tracer      trace.Tracer
}

// Client is a directory API client. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      Credentials
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
	tracer     trace.Tracer
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("apiclient: base url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("apiclient: invalid base url: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    base,
		creds:      opts.Credentials,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		tracer:     opts.Tracer,
	}
	if c.logger == nil {
		c.logger = logging.Default()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("carebook.internal.apiclient")
	}
	return c, nil
}

// WithCredentials returns a copy of c that authenticates with creds. The
// session store needs a client to refresh through before it exists, hence
// the two step construction.
func (c *Client) WithCredentials(creds Credentials) *Client {
	cp := *c
	cp.creds = creds
	return &cp
}

// request describes one API call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	out    any
	header http.Header
	// notFound is the domain code a 404 maps to. Empty means NOT_FOUND.
	notFound domainerr.Code
	// conflict is the domain code a 409 maps to. Empty means a generic
	// remote failure.
	conflict domainerr.Code
	// anonymous requests carry no bearer token and are not retried on 401.
	anonymous bool
}

func (c *Client) do(ctx context.Context, r request) error {
	ctx, span := c.tracer.Start(ctx, "carebook.api."+r.op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", r.method),
		attribute.String("carebook.api.path", r.path),
	)

	var payload []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("apiclient: %s: marshal request: %w", r.op, err)
		}
		payload = b
	}

	status, body, err := c.roundTrip(ctx, r, payload)
	if err == nil && status == http.StatusUnauthorized && !r.anonymous && c.creds != nil {
		c.logger.Info("apiclient: token rejected, re-authenticating", "op", r.op)
		if rerr := c.creds.Reauthenticate(ctx); rerr != nil {
			err = &domainerr.Error{Code: domainerr.CodeUnauthenticated, Status: status, Message: "re-authentication failed", Err: rerr}
		} else {
			status, body, err = c.roundTrip(ctx, r, payload)
		}
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("apiclient: %s: %w", r.op, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status < 200 || status > 299 {
		apiErr := decodeError(status, body, r)
		span.RecordError(apiErr)
		c.logger.Warn("apiclient: non-2xx response", "op", r.op, "status", status, "path", r.path, "body", truncate(body))
		return fmt.Errorf("apiclient: %s: %w", r.op, apiErr)
	}

	if r.out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, r.out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("apiclient: %s: decode response: %w", r.op, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, r request, payload []byte) (int, []byte, error) {
	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if !r.anonymous && c.creds != nil {
		token, err := c.creds.Token(ctx)
		if err != nil {
			return 0, nil, fmt.Errorf("token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if role := c.creds.ActiveRole(); role != "" {
			req.Header.Set(headerActingContext, string(role))
		}
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRemoteCall(r.op, "error", time.Since(started).Seconds())
		return 0, nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	c.metrics.ObserveRemoteCall(r.op, strconv.Itoa(resp.StatusCode), time.Since(started).Seconds())
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("apiclient: response", "op", r.op, "status", resp.StatusCode, "duration_ms", time.Since(started).Milliseconds())
	return resp.StatusCode, body, nil
}

// decodeError maps a non-2xx response onto the domain taxonomy. The body is
// expected to be {"code": "...", "message": "..."} but anything is accepted.
func decodeError(status int, body []byte, r request) *domainerr.Error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	msg := payload.Message
	if msg == "" {
		msg = truncate(body)
	}
	remote := domainerr.Code(strings.ToUpper(strings.TrimSpace(payload.Code)))

	var code domainerr.Code
	switch {
	case remote == domainerr.CodeTimeSlotUnavailable:
		code = domainerr.CodeTimeSlotUnavailable
	case status == http.StatusConflict && r.conflict != "":
		code = r.conflict
	case remote == domainerr.CodeProfileNotFound:
		code = domainerr.CodeProfileNotFound
	case status == http.StatusNotFound:
		code = r.notFound
		if code == "" {
			code = domainerr.CodeNotFound
		}
	case status == http.StatusUnauthorized:
		code = domainerr.CodeUnauthenticated
	default:
		code = domainerr.CodeRemoteFailure
		if remote != "" {
			msg = string(remote) + ": " + msg
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &domainerr.Error{Code: code, Status: status, Message: msg}
}

// truncate cuts body to maxErrorBody bytes without splitting a rune.
func truncate(body []byte) string {
	if len(body) <= maxErrorBody {
		return string(body)
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut])
}

func escape(id string) string {
	return url.PathEscape(id)
}
