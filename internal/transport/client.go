// Package transport provides the HTTP client used by the source adapters.
// Requests are retried with exponential backoff on 429 and 5xx answers.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/agentstation/collection/pkg/constants"
	"github.com/agentstation/collection/pkg/errors"
	"github.com/agentstation/collection/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client provides HTTP client functionality with retries and optional authentication.
type Client struct {
	http   *retryablehttp.Client
	auth   Authenticator
	token  string
	source string
	agent  string
}

// Option configures a Client.
type Option func(*Client)

// WithAuth applies auth with token to every request. An empty token disables it.
func WithAuth(auth Authenticator, token string) Option {
	return func(c *Client) {
		c.auth = auth
		c.token = token
	}
}

// WithSource names the remote in errors and logs.
func WithSource(name string) Option {
	return func(c *Client) {
		c.source = name
	}
}

// WithRetry overrides the retry budget and backoff bounds.
func WithRetry(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.http.RetryMax = maxRetries
		c.http.RetryWaitMin = waitMin
		c.http.RetryWaitMax = waitMax
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.HTTPClient.Timeout = d
	}
}

// WithLogger routes retry logging to logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Client) {
		c.http.Logger = &leveledLogger{log: logger}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		c.agent = agent
	}
}

// New creates a new transport client.
func New(opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = constants.MaxRetries
	rc.RetryWaitMin = constants.RetryBackoff
	rc.RetryWaitMax = constants.MaxRetryBackoff
	rc.HTTPClient.Timeout = DefaultHTTPTimeout
	rc.Logger = &leveledLogger{log: logging.Default()}
	// Hand back the last response so callers can report its status.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		http:   rc,
		auth:   &NoAuth{},
		source: "remote",
		agent:  "collection",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request. The caller closes the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapResource("create", "request", "GET "+url, err)
	}
	if c.token != "" && c.auth != nil {
		c.auth.Apply(req.Request, c.token)
	}
	req.Header.Set("Accept", "application/json, application/yaml, text/plain, */*")
	req.Header.Set("User-Agent", c.agent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.WrapFetch(c.source, url, err)
	}
	return resp, nil
}

// GetBytes fetches url and returns the body of a 200 answer.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return c.readBody(resp, url)
}

// GetText fetches url as text.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.GetBytes(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetJSON fetches url and decodes the JSON body into target.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	body, err := c.GetBytes(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", url, err)
	}
	return nil
}

func (c *Client) readBody(resp *http.Response, url string) ([]byte, error) {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Str("url", url).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapFetch(c.source, url, errors.WrapIO("read", "response body", err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, &errors.APIError{
			Source:     c.source,
			StatusCode: resp.StatusCode,
			Message:    msg,
			Endpoint:   url,
		}
	}
	return body, nil
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log *zerolog.Logger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...any) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...any) {
	l.log.Trace().Fields(keysAndValues).Msg(msg)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...any) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}

var _ retryablehttp.LeveledLogger = (*leveledLogger)(nil)
