package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"proxyrotation/internal/shared/logger"
	"proxyrotation/internal/shared/types"
	"proxyrotation/proxypool/model"
)

var (
	// ErrNoProxyAvailable is returned when the pool has no valid proxy left.
	ErrNoProxyAvailable = errors.New("no valid proxy available")
	// ErrExhausted is returned when every allowed attempt failed.
	ErrExhausted = errors.New("all fetch attempts failed")
)

// Rotator 是 Fetcher 对代理池的最小依赖。*pool.Pool 实现了它。
type Rotator interface {
	Next() (model.Endpoint, bool)
	MarkInvalid(e model.Endpoint) bool
}

// Response is a successful fetch.
type Response struct {
	Proxy      model.Endpoint
	StatusCode int
	Body       []byte
	Attempts   int
}

// Fetcher requests a URL through proxies taken from a Rotator, demoting every
// proxy that fails a real request.
type Fetcher struct {
	pool        Rotator
	maxAttempts int
	timeout     time.Duration
	userAgent   string
}

// NewFetcher creates a fetcher. maxAttempts <= 0 keeps trying until the pool is empty.
func NewFetcher(pool Rotator, maxAttempts int, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = types.DefaultFetchTimeout * time.Second
	}
	return &Fetcher{
		pool:        pool,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		userAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	}
}

// Fetch GETs url. A transport error or non-2xx status demotes the proxy and
// the next one is tried. Cancelling ctx stops the loop without demoting.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	l := logger.WithComponent("ProxyPool/Fetcher")

	attempts := 0
	for f.maxAttempts <= 0 || attempts < f.maxAttempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		proxy, ok := f.pool.Next()
		if !ok {
			return nil, fmt.Errorf("%w after %d attempts", ErrNoProxyAvailable, attempts)
		}
		attempts++

		resp, err := f.fetchVia(ctx, proxy, url)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			l.Warn().Err(err).Str("proxy", proxy.String()).Int("attempt", attempts).Msg("Failed to fetch data using proxy, marking invalid.")
			f.pool.MarkInvalid(proxy)
			continue
		}

		resp.Attempts = attempts
		l.Debug().Str("proxy", proxy.String()).Int("status", resp.StatusCode).Int("attempt", attempts).Msg("Fetch succeeded.")
		return resp, nil
	}
	return nil, fmt.Errorf("%w (%d attempts)", ErrExhausted, attempts)
}

func (f *Fetcher) fetchVia(ctx context.Context, proxy model.Endpoint, url string) (*Response, error) {
	client := resty.New().
		SetTimeout(f.timeout).
		SetProxy(proxy.URL()).
		SetHeader("User-Agent", f.userAgent)
	defer client.GetClient().CloseIdleConnections()

	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("received non-successful status code: %d", resp.StatusCode())
	}
	return &Response{
		Proxy:      proxy,
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
	}, nil
}
