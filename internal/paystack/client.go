package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.paystack.co"
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

// GatewayError is any failure talking to the gateway: transport errors,
// non-2xx responses, a false status flag or an unreadable body.
type GatewayError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("paystack %s: %s (status %d)", e.Op, msg, e.StatusCode)
	}
	return fmt.Sprintf("paystack %s: %s", e.Op, msg)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ClientConfig configures a Client.
type ClientConfig struct {
	SecretKey  string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the Paystack transaction API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{httpClient: hc, baseURL: base, secretKey: cfg.SecretKey}
}

// InitializeTransaction opens a transaction and returns the hosted checkout
// URL the customer is redirected to.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body, err := newInitializeBody(req)
	if err != nil {
		return nil, &GatewayError{Op: "initialize", Message: "encode request", Err: err}
	}
	var out InitializeResult
	if err := c.do(ctx, "initialize", http.MethodPost, "/transaction/initialize", body, &out); err != nil {
		return nil, err
	}
	if out.AuthorizationURL == "" {
		return nil, &GatewayError{Op: "initialize", Message: "response missing authorization_url"}
	}
	if out.Reference == "" {
		out.Reference = req.Reference
	}
	return &out, nil
}

// VerifyTransaction fetches the gateway's record for reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	var out Transaction
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := c.do(ctx, "verify", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Reference == "" {
		out.Reference = reference
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &GatewayError{Op: op, Message: "encode request", Err: err}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &GatewayError{Op: op, Message: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Op: op, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Message: "response missing data"}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Message: "malformed response data", Err: err}
	}
	return nil
}
