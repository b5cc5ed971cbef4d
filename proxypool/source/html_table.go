package source

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"proxyrotation/internal/shared/logger"
	"proxyrotation/proxypool/model"
)

// HTMLTableSource reads a proxy list published as an HTML table whose first
// cell is the host and second cell the port.
type HTMLTableSource struct {
	url    string
	rows   string // CSS selector matching one <tr> per proxy
	scheme string // optional, e.g. "http" or "socks5"
	client *http.Client
}

func NewHTMLTableSource(url, rows, scheme string) *HTMLTableSource {
	if rows == "" {
		rows = "table tbody tr"
	}
	return &HTMLTableSource{
		url:    url,
		rows:   rows,
		scheme: scheme,
		client: &http.Client{
			Timeout: defaultSourceTimeout,
		},
	}
}

func (s *HTMLTableSource) Name() string { return "html:" + s.url }

func (s *HTMLTableSource) Load() ([]model.Endpoint, error) {
	req, err := http.NewRequest("GET", s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", s.url, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code (%d) from %s", resp.StatusCode, s.url)
	}
	return s.Parse(resp.Body)
}

// Parse extracts endpoints from an HTML document.
func (s *HTMLTableSource) Parse(r io.Reader) ([]model.Endpoint, error) {
	l := logger.WithComponent("ProxyPool/Source")

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", s.url, err)
	}

	var endpoints []model.Endpoint
	doc.Find(s.rows).Each(func(_ int, sel *goquery.Selection) {
		cells := sel.Find("td")
		host := strings.TrimSpace(cells.Eq(0).Text())
		portStr := strings.TrimSpace(cells.Eq(1).Text())
		if host == "" || portStr == "" {
			return
		}

		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			l.Warn().Str("host", host).Str("port", portStr).Msg("Failed to parse port, skipping.")
			return
		}

		addr := host + ":" + strconv.Itoa(port)
		if s.scheme != "" {
			addr = s.scheme + "://" + addr
		}
		endpoints = append(endpoints, model.Endpoint(addr))
	})

	l.Info().Str("url", s.url).Int("count", len(endpoints)).Msg("Loaded proxies from HTML table.")
	return endpoints, nil
}

