package validator

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"proxyrotation/internal/shared/logger"
	"proxyrotation/internal/shared/types"
	"proxyrotation/proxypool/model"
)

// Checker performs a single liveness check. Implementations never return
// errors: every failure is reported as false.
type Checker interface {
	Check(ctx context.Context, e model.Endpoint) bool
}

// HTTPChecker issues one GET to the validation target through the proxy and
// treats only a 200 response as live.
type HTTPChecker struct {
	target  string
	timeout time.Duration
}

// NewHTTPChecker creates a checker. Empty target and non-positive timeout fall back to the defaults.
func NewHTTPChecker(target string, timeout time.Duration) *HTTPChecker {
	if target == "" {
		target = types.DefaultValidationTarget
	}
	if timeout <= 0 {
		timeout = types.DefaultTimeoutSeconds * time.Second
	}
	return &HTTPChecker{
		target:  target,
		timeout: timeout,
	}
}

// Target returns the URL probed through each proxy.
func (c *HTTPChecker) Target() string { return c.target }

// Timeout returns the per-check deadline.
func (c *HTTPChecker) Timeout() time.Duration { return c.timeout }

func (c *HTTPChecker) Check(ctx context.Context, e model.Endpoint) bool {
	l := logger.WithComponent("ProxyPool/Validator")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	transport, err := NewTransport(e, c.timeout)
	if err != nil {
		l.Debug().Err(err).Str("proxy", e.String()).Msg("Cannot build transport for proxy.")
		return false
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.target, nil)
	if err != nil {
		l.Error().Err(err).Str("target", c.target).Msg("Failed to create validation request.")
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		l.Debug().Err(err).Str("proxy", e.String()).Msg("Validation request failed.")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		l.Debug().Str("proxy", e.String()).Int("status", resp.StatusCode).Msg("Validation target returned non-200 status.")
		return false
	}
	return true
}

// NewTransport builds an http.Transport that routes through e.
// http and https endpoints use the standard proxy mechanism (CONNECT for TLS
// targets); socks5 and socks5h endpoints go through a SOCKS5 dialer.
func NewTransport(e model.Endpoint, timeout time.Duration) (*http.Transport, error) {
	proxyURL, err := url.Parse(e.URL())
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL %q: %w", e, err)
	}
	if proxyURL.Host == "" {
		return nil, fmt.Errorf("proxy URL %q has no host", e)
	}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DisableKeepAlives:     true,
		IdleConnTimeout:       timeout,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	switch proxyURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
		transport.DialContext = dialer.DialContext
	case "socks5", "socks5h":
		socksDialer, err := proxy.FromURL(proxyURL, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		contextDialer, ok := socksDialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer for %q does not support contexts", e)
		}
		transport.DialContext = contextDialer.DialContext
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
	}
	return transport, nil
}
