package source

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"proxyrotation/internal/shared/logger"
	"proxyrotation/proxypool/model"
)

const (
	defaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"
	defaultSourceTimeout = 20 * time.Second
)

// RemoteSource 从一个返回纯文本代理列表（每行一个）的 URL 抓取代理。
type RemoteSource struct {
	url     string
	timeout time.Duration
}

func NewRemoteSource(url string) *RemoteSource {
	return &RemoteSource{
		url:     url,
		timeout: defaultSourceTimeout,
	}
}

func (s *RemoteSource) Name() string { return "remote:" + s.url }

func (s *RemoteSource) Load() ([]model.Endpoint, error) {
	l := logger.WithComponent("ProxyPool/Source")
	l.Debug().Str("url", s.url).Msg("Fetching remote proxy list...")

	// A fresh collector per call; colly refuses to revisit a URL it has seen.
	c := colly.NewCollector(colly.UserAgent(defaultUserAgent))
	c.SetRequestTimeout(s.timeout)

	var endpoints []model.Endpoint
	var loadErr error

	c.OnResponse(func(r *colly.Response) {
		parsed, err := ParseLines(bytes.NewReader(r.Body))
		if err != nil {
			loadErr = fmt.Errorf("failed to parse body of %s: %w", s.url, err)
			return
		}
		endpoints = parsed
	})

	c.OnError(func(r *colly.Response, err error) {
		loadErr = fmt.Errorf("request to %s failed (status %d): %w", s.url, r.StatusCode, err)
	})

	if err := c.Visit(s.url); err != nil && loadErr == nil {
		loadErr = fmt.Errorf("request to %s failed: %w", s.url, err)
	}
	c.Wait()

	if loadErr != nil {
		return nil, loadErr
	}

	l.Info().Str("url", s.url).Int("count", len(endpoints)).Msg("Loaded proxies from remote list.")
	return endpoints, nil
}
