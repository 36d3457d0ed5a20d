package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"sync/atomic"
	"time"

	"github.com/vantagebit/dynago/auth"
	"github.com/vantagebit/dynago/config"
	"github.com/vantagebit/dynago/credentials"
	"github.com/vantagebit/dynago/logger"
	"github.com/vantagebit/dynago/region"
	"github.com/vantagebit/dynago/retry"
	"github.com/vantagebit/dynago/transport"
)

const (
	// ServiceName and APIVersion form the X-Amz-Target action prefix.
	ServiceName = "DynamoDB"
	APIVersion  = "20111205"

	contentType = "application/x-amz-json-1.0"

	// NumberRetries is the retry budget for document-store calls.
	NumberRetries = 10

	// Error type discriminators matched against the __type field of a 400
	// response body.
	throughputError       = "ProvisionedThroughputExceededException"
	sessionExpiredError   = "com.amazon.coral.service#ExpiredTokenException"
	conditionalCheckError = "ConditionalCheckFailedException"
	validationError       = "ValidationException"

	serviceKey = "dynamodb"
)

// Client is the low-level interface to the document store. Operations map
// one-to-one onto API actions; payloads and results are the JSON documents
// defined by the service, decoded into map[string]any.
type Client struct {
	exec     *transport.Executor
	signer   auth.Signer
	provider credentials.Provider
	log      logger.Logger

	host   string
	port   int
	scheme string

	numRetries        int
	validateChecksums bool
	tight             retry.ThroughputPolicy

	throughputEvents atomic.Int64
}

// Builder assembles a Client from configuration.
type Builder struct {
	cfg          *config.Config
	log          logger.Logger
	provider     credentials.Provider
	hook         transport.RequestHook
	roundTripper nethttp.RoundTripper
}

// NewBuilder creates a client builder.
func NewBuilder(cfg *config.Config, log logger.Logger) *Builder {
	return &Builder{cfg: cfg, log: log}
}

// WithCredentials overrides the credentials provider derived from config.
func (b *Builder) WithCredentials(p credentials.Provider) *Builder {
	b.provider = p
	return b
}

// WithRequestHook installs an instrumentation hook on the executor.
func (b *Builder) WithRequestHook(hook transport.RequestHook) *Builder {
	b.hook = hook
	return b
}

// WithTransport replaces the underlying round tripper. Used by tests.
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.roundTripper = rt
	return b
}

// Build resolves the endpoint, selects a signer and constructs the client.
func (b *Builder) Build() (*Client, error) {
	cfg := b.cfg

	provider := b.provider
	if provider == nil {
		if cfg.Credentials.AccessKey != "" || cfg.Credentials.SecretKey != "" {
			provider = credentials.NewStatic(
				cfg.Credentials.AccessKey,
				cfg.Credentials.SecretKey,
				cfg.Credentials.SessionToken,
			)
		} else {
			provider = credentials.NewChain(credentials.NewEnv())
		}
	}

	host := cfg.Region.Endpoint
	if host == "" {
		table, err := region.Load(cfg.Region.EndpointsPath)
		if err != nil {
			return nil, err
		}
		info, err := table.Get(serviceKey, cfg.Region.Name)
		if err != nil {
			return nil, err
		}
		host = info.Endpoint
	}

	signer, err := auth.Default().Select([]string{"hmac-v4"}, host, cfg.Region.Name, serviceKey, provider)
	if err != nil {
		return nil, err
	}

	scheme := "https"
	if !cfg.HTTP.Secure {
		scheme = "http"
	}

	// The retry budget is passed per Do call, not configured on the executor.
	execBuilder := transport.NewBuilder(b.log).
		WithTimeout(cfg.HTTP.Timeout).
		WithMaxRetryDelay(cfg.Retry.MaxDelay).
		WithPoolSize(cfg.HTTP.PoolSize).
		WithRequestHook(b.hook)
	if cfg.HTTP.RateLimit > 0 {
		execBuilder.WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.PoolSize)
	}
	if b.roundTripper != nil {
		execBuilder.WithTransport(b.roundTripper)
	}

	numRetries := cfg.Retry.Max
	if numRetries <= 0 {
		numRetries = NumberRetries
	}

	return &Client{
		exec:              execBuilder.Build(),
		signer:            signer,
		provider:          provider,
		log:               b.log,
		host:              host,
		port:              cfg.HTTP.Port,
		scheme:            scheme,
		numRetries:        numRetries,
		validateChecksums: cfg.Validate.Checksums,
		tight:             retry.NewThroughputPolicy(cfg.Retry.MaxDelay),
	}, nil
}

// Close releases the client's idle pooled connections.
func (c *Client) Close() {
	c.exec.Close()
}

// ThroughputExceededEvents returns a running total of throughput-exceeded
// responses received by this client.
func (c *Client) ThroughputExceededEvents() int64 {
	return c.throughputEvents.Load()
}

// MakeRequest executes one API action. The payload is marshaled to JSON and
// the decoded response document is returned. Error responses surface as the
// typed errors of this package.
func (c *Client) MakeRequest(ctx context.Context, action string, payload any) (map[string]any, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", action, err)
	}

	req := transport.NewRequest("POST", c.scheme, c.host, c.port, "/")
	req.SetHeader("X-Amz-Target", fmt.Sprintf("%s_%s.%s", ServiceName, APIVersion, action))
	req.SetHeader("Content-Type", contentType)
	req.Body = body

	start := time.Now()
	resp, err := c.exec.Do(ctx, req, c.signer, c.numRetries, c.retryHandler)
	if err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("action", action).
		Str("request_id", resp.Header("x-amzn-RequestId")).
		Int("status", resp.Status).
		Int("attempts", resp.Attempts).
		Dur("elapsed", time.Since(start)).
		Msg("request finished")

	var result map[string]any
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", action, err)
		}
	}

	if resp.Status != nethttp.StatusOK {
		return nil, &ResponseError{Status: resp.Status, Reason: resp.Reason, Data: result}
	}
	return result, nil
}
