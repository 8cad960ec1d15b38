package skrill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultTimeout caps every outbound provider call. There is no retry; a
// timeout surfaces as a plain error to the fault handler.
const DefaultTimeout = 10 * time.Second

// ErrRemoteProtocol marks a malformed or error-bearing provider response.
var ErrRemoteProtocol = errors.New("skrill: remote protocol error")

// Client performs GET requests against the provider services.
type Client struct {
	http *http.Client
}

// NewClient builds a client with the fixed provider timeout and an
// instrumented transport.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Get requests a service URL and returns the raw response body.
func (c *Client) Get(ctx context.Context, serviceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// RequestSessionToken performs the prepare-only round trip and returns the
// opaque session token. The provider replies with the bare token on success
// and a JSON {code,message} document on error.
func (c *Client) RequestSessionToken(ctx context.Context, sessionRequestURL string) (string, error) {
	body, err := c.Get(ctx, sessionRequestURL)
	if err != nil {
		return "", err
	}
	var sessionError struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if jsonErr := json.Unmarshal([]byte(body), &sessionError); jsonErr == nil && sessionError.Code != "" {
		return "", fmt.Errorf("%w: %s - %s", ErrRemoteProtocol, sessionError.Code, sessionError.Message)
	}
	token := strings.TrimSpace(body)
	if token == "" {
		return "", fmt.Errorf("%w: empty session response", ErrRemoteProtocol)
	}
	return token, nil
}
