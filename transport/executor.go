package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/vantagebit/dynago/logger"
	"github.com/vantagebit/dynago/retry"
)

const (
	// DefaultTimeout is the per-request socket timeout.
	DefaultTimeout = 70 * time.Second

	// DefaultMaxRetries is the general-purpose retry budget. Protocol layers
	// may override it per call (the document-store client uses 10).
	DefaultMaxRetries = 6

	// DefaultPoolSize is the keep-alive connection pool size per host.
	DefaultPoolSize = 10

	tracerName = "github.com/vantagebit/dynago/transport"
)

// Classifier inspects a response before default retry handling. Returning a
// non-nil decision replaces the default handling for this attempt; returning
// an error terminates the loop with that error. (nil, nil) falls through to
// the default policy.
type Classifier func(ctx context.Context, resp *Response, attempt int, nextDelay time.Duration) (*retry.Decision, error)

// RequestHook receives the request and terminal response (or failure flag)
// after every completed execution, for external instrumentation. Hook errors
// are logged and never mask the primary outcome.
type RequestHook interface {
	HandleRequestData(req *Request, resp *Response, failed bool) error
}

// Response is a fully-read HTTP response returned by the executor. Status
// semantics of non-5xx codes are the caller's to interpret; the engine only
// raises on retry exhaustion or classifier-raised errors.
type Response struct {
	Status   int
	Reason   string
	Headers  nethttp.Header
	Body     []byte
	Attempts int
	Elapsed  time.Duration
}

// Header returns the named response header, matching case-insensitively.
func (r *Response) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// Executor runs signed requests through a bounded retry loop with
// exponential backoff. It is safe for concurrent use; all attempt state is
// local to each Do invocation and the underlying connection pool is managed
// by net/http.
type Executor struct {
	httpClient *nethttp.Client
	log        logger.Logger
	policy     retry.Policy
	maxRetries int
	hook       RequestHook
	limiter    *rate.Limiter
	tracer     trace.Tracer
}

// Builder configures an Executor.
type Builder struct {
	log           logger.Logger
	timeout       time.Duration
	maxRetries    int
	maxRetryDelay time.Duration
	poolSize      int
	hook          RequestHook
	limiter       *rate.Limiter
	roundTripper  nethttp.RoundTripper
	insecureTLS   bool
}

// NewBuilder creates an executor builder with defaults.
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		log:           log,
		timeout:       DefaultTimeout,
		maxRetries:    DefaultMaxRetries,
		maxRetryDelay: retry.DefaultMaxDelay,
		poolSize:      DefaultPoolSize,
	}
}

// WithTimeout sets the per-request socket timeout.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	if timeout > 0 {
		b.timeout = timeout
	}
	return b
}

// WithMaxRetries sets the default retry budget for Do calls that do not
// override it.
func (b *Builder) WithMaxRetries(n int) *Builder {
	if n >= 0 {
		b.maxRetries = n
	}
	return b
}

// WithMaxRetryDelay caps the standard backoff curve.
func (b *Builder) WithMaxRetryDelay(d time.Duration) *Builder {
	b.maxRetryDelay = d
	return b
}

// WithPoolSize sets the keep-alive pool size per host.
func (b *Builder) WithPoolSize(n int) *Builder {
	if n > 0 {
		b.poolSize = n
	}
	return b
}

// WithRequestHook installs an instrumentation hook invoked on every terminal
// attempt.
func (b *Builder) WithRequestHook(hook RequestHook) *Builder {
	b.hook = hook
	return b
}

// WithRateLimit throttles attempt starts to rps requests per second with the
// given burst. Zero rps disables throttling.
func (b *Builder) WithRateLimit(rps float64, burst int) *Builder {
	if rps > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return b
}

// WithTransport replaces the underlying round tripper. Used by tests and by
// callers with bespoke proxy or TLS needs.
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.roundTripper = rt
	return b
}

// WithInsecureTLS disables server certificate validation. Intended for local
// endpoints only.
func (b *Builder) WithInsecureTLS(insecure bool) *Builder {
	b.insecureTLS = insecure
	return b
}

// Build creates the executor.
func (b *Builder) Build() *Executor {
	rt := b.roundTripper
	if rt == nil {
		rt = &nethttp.Transport{
			Proxy:               nethttp.ProxyFromEnvironment,
			MaxIdleConns:        4 * b.poolSize,
			MaxIdleConnsPerHost: b.poolSize,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: b.insecureTLS},
		}
	}
	return &Executor{
		httpClient: &nethttp.Client{
			Timeout:   b.timeout,
			Transport: rt,
			// Redirects are not followed; a 3xx with Location is handed back
			// to the caller as a terminal response.
			CheckRedirect: func(*nethttp.Request, []*nethttp.Request) error {
				return nethttp.ErrUseLastResponse
			},
		},
		log:        b.log,
		policy:     retry.NewPolicy(b.maxRetryDelay),
		maxRetries: b.maxRetries,
		hook:       b.hook,
		limiter:    b.limiter,
		tracer:     otel.Tracer(tracerName),
	}
}

// Policy exposes the executor's standard backoff policy.
func (e *Executor) Policy() retry.Policy {
	return e.policy
}

// MaxRetries exposes the executor's default retry budget.
func (e *Executor) MaxRetries() int {
	return e.maxRetries
}

// Close releases idle pooled connections.
func (e *Executor) Close() {
	e.httpClient.CloseIdleConnections()
}

// Do executes the request with up to maxRetries+1 attempts. A negative
// maxRetries selects the executor default. Each attempt re-authorizes the
// request through signer so time-bound signatures stay fresh. The optional
// classifier sees every response before default handling.
//
// Terminal success returns the response with its fully-read body; the engine
// never raises on 4xx status codes. Terminal failure returns a typed error:
// ServerError after exhausted 5xx retries, the captured transport error
// after exhausted connection failures, TLSError immediately on certificate
// problems, TimeoutError when the context is done, or any error the
// classifier raised.
func (e *Executor) Do(ctx context.Context, req *Request, signer Signer, maxRetries int, classifier Classifier) (*Response, error) {
	if req == nil {
		return nil, &ClientError{Message: "request cannot be nil"}
	}
	if maxRetries < 0 {
		maxRetries = e.maxRetries
	}

	// Clone up front: authorization mutates headers and the caller's
	// descriptor must stay reusable. The quote-once flag lives on the clone,
	// so retries re-sign without re-encoding.
	req = req.Clone()

	log := e.log.WithFields(map[string]any{"request_id": uuid.NewString()})
	ctx, span := e.tracer.Start(ctx, req.Method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("server.address", req.Host),
		))
	defer span.End()

	start := time.Now()
	var (
		lastResp     *Response
		lastBody     []byte
		transportErr error
	)

	attempt := 0
	for attempt <= maxRetries {
		nextDelay := e.policy.Delay(attempt)

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return e.fail(span, req, lastResp, &TimeoutError{Message: "aborted while rate limited", Err: err})
			}
		}

		if err := req.Authorize(signer); err != nil {
			return e.fail(span, req, lastResp, err)
		}

		log.Debug().
			Str("method", req.Method).
			Str("url", req.URL()).
			Int("attempt", attempt).
			Msg("sending request")

		httpResp, err := e.send(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return e.fail(span, req, lastResp, &TimeoutError{Message: "request aborted", Timeout: e.httpClient.Timeout, Err: err})
			}
			if IsKind(err, KindClient) {
				return e.fail(span, req, lastResp, err)
			}
			if isUnretryableTLS(err) {
				return e.fail(span, req, lastResp, &TLSError{Message: "certificate validation failed", Err: err})
			}
			transportErr = classifySendError(err, e.httpClient.Timeout)
			log.Debug().Err(err).Dur("delay", nextDelay).Msg("transient transport failure, retrying")
			if serr := sleepContext(ctx, nextDelay); serr != nil {
				return e.fail(span, req, lastResp, &TimeoutError{Message: "aborted during backoff", Err: serr})
			}
			attempt++
			continue
		}

		body, readErr := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if readErr != nil {
			// A partially-consumed body under cancellation is not a response.
			if ctx.Err() != nil {
				return e.fail(span, req, lastResp, &TimeoutError{Message: "response read aborted", Err: readErr})
			}
			transportErr = &NetworkError{Message: "failed to read response body", Err: readErr}
			if serr := sleepContext(ctx, nextDelay); serr != nil {
				return e.fail(span, req, lastResp, &TimeoutError{Message: "aborted during backoff", Err: serr})
			}
			attempt++
			continue
		}

		resp := &Response{
			Status:   httpResp.StatusCode,
			Reason:   nethttp.StatusText(httpResp.StatusCode),
			Headers:  httpResp.Header,
			Body:     body,
			Attempts: attempt + 1,
			Elapsed:  time.Since(start),
		}

		if classifier != nil {
			decision, cerr := classifier(ctx, resp, attempt, nextDelay)
			if cerr != nil {
				return e.fail(span, req, resp, cerr)
			}
			if decision != nil {
				if decision.Reason != "" {
					log.Debug().
						Str("reason", decision.Reason).
						Int("attempt", decision.Attempt).
						Dur("delay", decision.Delay).
						Msg("classifier requested retry")
				}
				lastResp, lastBody = resp, body
				if serr := sleepContext(ctx, decision.Delay); serr != nil {
					return e.fail(span, req, resp, &TimeoutError{Message: "aborted during backoff", Err: serr})
				}
				// The index only moves forward; a decision that does not
				// advance it still consumes an attempt.
				if decision.Attempt <= attempt {
					attempt++
				} else {
					attempt = decision.Attempt
				}
				continue
			}
		}

		if isRetryableStatus(resp.Status) {
			lastResp, lastBody = resp, body
			log.Debug().
				Int("status", resp.Status).
				Dur("delay", nextDelay).
				Msg("retryable server status")
			if serr := sleepContext(ctx, nextDelay); serr != nil {
				return e.fail(span, req, resp, &TimeoutError{Message: "aborted during backoff", Err: serr})
			}
			attempt++
			continue
		}

		// Terminal. 3xx responses are returned with their Location header
		// for the caller to interpret.
		e.notifyHook(req, resp, false)
		span.SetAttributes(
			attribute.Int("http.response.status_code", resp.Status),
			attribute.Int("dynago.attempts", resp.Attempts),
		)
		span.SetStatus(codes.Ok, "")
		log.Debug().
			Int("status", resp.Status).
			Int("attempt", attempt).
			Dur("elapsed", resp.Elapsed).
			Msg("request complete")
		return resp, nil
	}

	var err error
	switch {
	case lastResp != nil:
		err = &ServerError{Status: lastResp.Status, Reason: lastResp.Reason, Body: lastBody}
	case transportErr != nil:
		err = transportErr
	default:
		// Unreachable in correct operation: the loop always records a
		// response or an error before exhausting the budget.
		err = &ClientError{Message: "retry loop exhausted without response or error"}
	}
	return e.fail(span, req, lastResp, err)
}

// send builds and performs one network attempt.
func (e *Executor) send(ctx context.Context, req *Request) (*nethttp.Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := nethttp.NewRequestWithContext(ctx, req.Method, req.URL(), body)
	if err != nil {
		return nil, &ClientError{Message: "failed to build http request: " + err.Error()}
	}
	for k, v := range req.Headers {
		if k == "Host" {
			httpReq.Host = v
			continue
		}
		httpReq.Header.Set(k, v)
	}
	return e.httpClient.Do(httpReq)
}

func (e *Executor) fail(span trace.Span, req *Request, resp *Response, err error) (*Response, error) {
	e.notifyHook(req, resp, true)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func (e *Executor) notifyHook(req *Request, resp *Response, failed bool) {
	if e.hook == nil {
		return
	}
	if err := e.hook.HandleRequestData(req, resp, failed); err != nil {
		e.log.Warn().Err(err).Msg("request hook failed")
	}
}

// isRetryableStatus reports the 5xx set retried with standard backoff.
func isRetryableStatus(code int) bool {
	switch code {
	case nethttp.StatusInternalServerError,
		nethttp.StatusBadGateway,
		nethttp.StatusServiceUnavailable,
		nethttp.StatusGatewayTimeout:
		return true
	}
	return false
}

// isUnretryableTLS distinguishes security-relevant TLS failures from
// transient handshake problems.
func isUnretryableTLS(err error) bool {
	var certVerify *tls.CertificateVerificationError
	if errors.As(err, &certVerify) {
		return true
	}
	var recordHdr tls.RecordHeaderError
	if errors.As(err, &recordHdr) {
		return true
	}
	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return true
	}
	var certInvalid x509.CertificateInvalidError
	if errors.As(err, &certInvalid) {
		return true
	}
	var hostname x509.HostnameError
	if errors.As(err, &hostname) {
		return true
	}
	return false
}

func classifySendError(err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Message: "request timed out", Timeout: timeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Message: "request timed out", Timeout: timeout, Err: err}
	}
	return &NetworkError{Message: "request execution failed", Err: err}
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
