// Package httpadapter sends JSON or raw bodies to hosted model APIs and maps
// every result onto the normalized provider outcome taxonomy.
package httpadapter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
)

// CaptureMode controls how much of a provider body reaches error messages.
type CaptureMode string

const (
	CaptureRedacted CaptureMode = "redacted"
	CaptureFull     CaptureMode = "full"
	CaptureHash     CaptureMode = "hash"

	// EnvCaptureMode is consulted when Config.CaptureMode is empty.
	EnvCaptureMode = "PITCHROOM_PROVIDER_IO_CAPTURE_MODE"

	defaultCaptureBytes     = 512
	defaultMaxResponseBytes = 8 << 20
	defaultBackoffMS        = 500
)

// ParseCaptureMode maps raw input to a mode, defaulting to redacted.
func ParseCaptureMode(raw string) CaptureMode {
	switch mode := CaptureMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case CaptureFull, CaptureHash, CaptureRedacted:
		return mode
	default:
		return CaptureRedacted
	}
}

// Config configures one provider endpoint.
type Config struct {
	ProviderID       string
	Modality         contracts.Modality
	Endpoint         string
	APIKey           string
	APIKeyHeader     string
	APIKeyPrefix     string
	StaticHeaders    map[string]string
	Timeout          time.Duration
	MaxResponseBytes int
	CaptureMode      CaptureMode
	HTTPClient       *http.Client
}

// Client performs provider requests.
type Client struct {
	cfg    Config
	client *http.Client
}

// Response is a provider reply with its normalized outcome.
type Response struct {
	Outcome contracts.Outcome
	Body    []byte
	// Capture is a log-safe rendering of Body.
	Capture string
	// ProviderMessage is the error text the provider put in its body, if any.
	ProviderMessage string
}

// New validates cfg and builds a client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ProviderID) == "" {
		return nil, fmt.Errorf("provider_id is required")
	}
	if err := cfg.Modality.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}
	if cfg.CaptureMode == "" {
		cfg.CaptureMode = ParseCaptureMode(os.Getenv(EnvCaptureMode))
	} else {
		cfg.CaptureMode = ParseCaptureMode(string(cfg.CaptureMode))
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Client{cfg: cfg, client: client}, nil
}

// ProviderID returns the configured provider id.
func (c *Client) ProviderID() string {
	return c.cfg.ProviderID
}

// WithEndpoint returns a client posting to endpoint. The copy shares the
// underlying *http.Client.
func (c *Client) WithEndpoint(endpoint string) *Client {
	cfg := c.cfg
	cfg.Endpoint = endpoint
	return &Client{cfg: cfg, client: c.client}
}

// PostJSON marshals payload and posts it. Transport failures and non-2xx
// statuses are reported through Response.Outcome; err is only set when the
// request could not be built.
func (c *Client) PostJSON(ctx context.Context, payload any) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, err
	}
	return c.Send(ctx, bytes.NewReader(body), "application/json")
}

// Send posts a raw body with the given content type.
func (c *Client) Send(ctx context.Context, body io.Reader, contentType string) (Response, error) {
	if c.cfg.Endpoint == "" {
		return Response{Outcome: contracts.Outcome{Class: contracts.OutcomeBlocked, Reason: "provider_endpoint_missing"}}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Response{Outcome: NormalizeNetworkError(err)}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return Response{}, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cfg.APIKeyHeader != "" && c.cfg.APIKey != "" {
		req.Header.Set(c.cfg.APIKeyHeader, c.cfg.APIKeyPrefix+c.cfg.APIKey)
	}
	for key, value := range c.cfg.StaticHeaders {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{Outcome: NormalizeNetworkError(err), Capture: "network_error=" + err.Error()}, nil
	}
	defer resp.Body.Close()

	outcome := NormalizeStatus(resp.StatusCode, resp.Header.Get("Retry-After"))
	payload, truncated, err := readLimited(resp.Body, c.cfg.MaxResponseBytes)
	if err != nil {
		outcome = NormalizeNetworkError(err)
		outcome.OutputStatusCode = resp.StatusCode
		return Response{Outcome: outcome}, nil
	}
	if truncated && outcome.Class == contracts.OutcomeSuccess {
		outcome = contracts.Outcome{Class: contracts.OutcomeMalformedResponse, Reason: "provider_response_too_large", OutputStatusCode: resp.StatusCode}
	}
	out := Response{Outcome: outcome, Body: payload, Capture: Capture(payload, c.cfg.CaptureMode, defaultCaptureBytes)}
	if outcome.Class != contracts.OutcomeSuccess {
		out.ProviderMessage = providerMessage(payload)
	}
	return out, nil
}

// Failure describes a non-success response for error messages.
func (r Response) Failure() string {
	var b strings.Builder
	if r.Outcome.OutputStatusCode != 0 {
		fmt.Fprintf(&b, "status %d: ", r.Outcome.OutputStatusCode)
	}
	b.WriteString(r.Outcome.Reason)
	if r.ProviderMessage != "" {
		fmt.Fprintf(&b, ": %s", r.ProviderMessage)
	}
	if r.Capture != "" {
		fmt.Fprintf(&b, " (%s)", r.Capture)
	}
	return b.String()
}

// providerMessage pulls the human-readable error out of the common API error
// envelopes: {"error":{"message"}}, {"error":"..."}, {"message"},
// {"detail":{"message"}}, {"detail":"..."} and {"err_msg"}.
func providerMessage(body []byte) string {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		ErrMsg  string          `json:"err_msg"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	for _, raw := range []json.RawMessage{env.Error, env.Detail} {
		if msg := messageFrom(raw); msg != "" {
			return msg
		}
	}
	if env.Message != "" {
		return truncate(env.Message)
	}
	return truncate(env.ErrMsg)
}

func messageFrom(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return truncate(s)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return truncate(obj.Message)
	}
	return ""
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "…"
	}
	return s
}

// WithQuery sets a query key on an endpoint URL.
func WithQuery(rawEndpoint string, key string, value string) (string, error) {
	u, err := url.Parse(rawEndpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NormalizeNetworkError maps transport-level errors to outcomes.
func NormalizeNetworkError(err error) contracts.Outcome {
	if errors.Is(err, context.Canceled) {
		return contracts.Outcome{Class: contracts.OutcomeCancelled, Reason: "provider_cancelled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return contracts.Outcome{Class: contracts.OutcomeTimeout, Retryable: true, Reason: "provider_timeout"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return contracts.Outcome{Class: contracts.OutcomeTimeout, Retryable: true, Reason: "provider_timeout"}
	}
	return contracts.Outcome{Class: contracts.OutcomeInfrastructureFailure, Retryable: true, Reason: "provider_transport_error"}
}

// NormalizeStatus maps an HTTP status and Retry-After header to an outcome.
func NormalizeStatus(status int, retryAfter string) contracts.Outcome {
	outcome := contracts.Outcome{OutputStatusCode: status}
	switch {
	case status >= 200 && status <= 299:
		outcome.Class = contracts.OutcomeSuccess
	case status == http.StatusTooManyRequests:
		outcome.Class = contracts.OutcomeOverload
		outcome.Retryable = true
		outcome.Reason = "provider_overload"
		outcome.BackoffMS = retryAfterMS(retryAfter, time.Now())
		outcome.CircuitOpen = true
	case status == 529: // Anthropic "overloaded"
		outcome.Class = contracts.OutcomeOverload
		outcome.Retryable = true
		outcome.Reason = "provider_overload"
		outcome.BackoffMS = defaultBackoffMS
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		outcome.Class = contracts.OutcomeTimeout
		outcome.Retryable = true
		outcome.Reason = "provider_timeout"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		outcome.Class = contracts.OutcomeBlocked
		outcome.Reason = "provider_auth_or_policy_block"
	case status >= 400 && status <= 499:
		outcome.Class = contracts.OutcomeBlocked
		outcome.Reason = "provider_client_error"
	default:
		outcome.Class = contracts.OutcomeInfrastructureFailure
		outcome.Retryable = true
		outcome.Reason = "provider_server_error"
		outcome.CircuitOpen = status >= 500
	}
	return outcome
}

// retryAfterMS accepts delta-seconds or an HTTP date.
func retryAfterMS(retryAfter string, now time.Time) int64 {
	value := strings.TrimSpace(retryAfter)
	if value == "" {
		return defaultBackoffMS
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 1 {
			return defaultBackoffMS
		}
		return int64(seconds) * 1000
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := at.Sub(now); wait > 0 {
			return wait.Milliseconds()
		}
	}
	return defaultBackoffMS
}

// Capture renders up to maxBytes of raw for logs and error text.
func Capture(raw []byte, mode CaptureMode, maxBytes int) string {
	if maxBytes < 1 {
		maxBytes = defaultCaptureBytes
	}
	sample := raw
	if len(sample) > maxBytes {
		sample = sample[:maxBytes]
	}
	switch mode {
	case CaptureFull:
		if len(sample) == 0 {
			return ""
		}
		if utf8.Valid(sample) {
			return string(sample)
		}
		return "base64:" + base64.StdEncoding.EncodeToString(sample)
	case CaptureHash:
		return fmt.Sprintf("sha256=%s bytes=%d", hashBytes(sample), len(raw))
	default:
		return fmt.Sprintf("redacted sha256=%s bytes=%d", hashBytes(sample), len(raw))
	}
}

func hashBytes(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func readLimited(reader io.Reader, maxBytes int) ([]byte, bool, error) {
	payload, err := io.ReadAll(io.LimitReader(reader, int64(maxBytes+1)))
	if err != nil {
		return nil, false, err
	}
	if len(payload) > maxBytes {
		return payload[:maxBytes], true, nil
	}
	return payload, false, nil
}
