package flexquery

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guttosm/flexpulse/internal/logger"
)

// DefaultBaseURL is the Flex Web Service endpoint root.
const DefaultBaseURL = "https://ndcdyn.interactivebrokers.com/AccountManagement/FlexWebService"

// ClientConfig configures the Flex Web Service client.
//
// Fields:
//   - BaseURL: endpoint root; SendRequest and GetStatement are appended.
//   - Token / QueryID: credentials of the saved Flex Query.
//   - Version: web service version parameter (default "3").
//   - MaxRetries: attempts for GetStatement while the statement is generating.
//   - RetryDelay: pause between attempts.
//   - Timeout: per-request HTTP timeout.
type ClientConfig struct {
	BaseURL    string
	Token      string
	QueryID    string
	Version    string
	UserAgent  string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Client talks to the Flex Web Service. It owns timeout and retry policy.
type Client struct {
	cfg   ClientConfig
	http  *http.Client
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient validates cfg, applies defaults and returns a client.
// A nil httpClient gets a client with cfg.Timeout.
func NewClient(cfg ClientConfig, httpClient *http.Client) (*Client, error) {
	if cfg.Token == "" || cfg.QueryID == "" {
		return nil, errors.New("flexquery: token and query id are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Version == "" {
		cfg.Version = "3"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "flexpulse/1.0"
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient, sleep: sleepCtx}, nil
}

// Fetch requests a new statement and downloads it once generated.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	ref, err := c.SendRequest(ctx)
	if err != nil {
		return nil, err
	}
	return c.GetStatement(ctx, ref)
}

// SendRequest asks the service to generate the configured query and returns
// the reference code to poll with GetStatement.
func (c *Client) SendRequest(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "SendRequest", c.cfg.QueryID)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	var env envelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("send request: decode response: %w", err)
	}
	if err := env.err(); err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	if env.ReferenceCode == "" {
		return "", errors.New("send request: response carries no reference code")
	}
	logger.L().Info().Str("reference_code", env.ReferenceCode).Msg("flex statement requested")
	return env.ReferenceCode, nil
}

// GetStatement downloads the statement for ref. While the service answers
// with ErrorCode 1019 (generation in progress) it retries up to MaxRetries
// times, waiting RetryDelay between attempts. Other service errors fail at once.
func (c *Client) GetStatement(ctx context.Context, ref string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		body, err := c.get(ctx, "GetStatement", ref)
		if err != nil {
			return nil, fmt.Errorf("get statement: %w", err)
		}

		svcErr := envelopeError(body)
		if svcErr == nil {
			logger.L().Info().Str("reference_code", ref).Int("bytes", len(body)).Int("attempt", attempt).Msg("flex statement downloaded")
			return body, nil
		}
		if !svcErr.Retryable() {
			return nil, fmt.Errorf("get statement: %w", svcErr)
		}

		lastErr = svcErr
		logger.L().Warn().
			Int("attempt", attempt).
			Int("max_attempts", c.cfg.MaxRetries).
			Dur("retry_in", c.cfg.RetryDelay).
			Msg("flex statement generation in progress")
		if attempt == c.cfg.MaxRetries {
			break
		}
		if err := c.sleep(ctx, c.cfg.RetryDelay); err != nil {
			return nil, fmt.Errorf("get statement: %w", err)
		}
	}
	return nil, fmt.Errorf("get statement: retries exhausted: %w", lastErr)
}

func (c *Client) get(ctx context.Context, endpoint, q string) ([]byte, error) {
	params := url.Values{}
	params.Set("t", c.cfg.Token)
	params.Set("q", q)
	params.Set("v", c.cfg.Version)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: unexpected status %d", endpoint, resp.StatusCode)
	}
	return body, nil
}

// envelopeError returns the service error carried by body, if body is an
// error envelope rather than a statement.
func envelopeError(body []byte) *ServiceError {
	dec := xml.NewDecoder(bytes.NewReader(body))
	start, err := rootStart(dec)
	if err != nil || start.Name.Local != envelopeElement {
		return nil
	}
	var env envelope
	if err := dec.DecodeElement(&env, &start); err != nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(env.err(), &svcErr) {
		return svcErr
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
