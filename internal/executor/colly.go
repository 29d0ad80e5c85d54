package executor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/polzat/internal/crawler"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultMaxBodyBytes = 10 << 20
	defaultUserAgent    = "polzat/0.1"
)

// CollyConfig controls page fetching.
type CollyConfig struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
	// TorProxyAddress is the host:port of a SOCKS5 Tor proxy. Empty disables
	// hidden-service fetching.
	TorProxyAddress string
}

// CollyFetcher implements crawler.Fetcher with a fresh colly collector per
// request so per-request transports never leak between tasks.
type CollyFetcher struct {
	cfg    CollyConfig
	web    http.RoundTripper
	tor    http.RoundTripper
	logger *zap.Logger
}

// NewCollyFetcher builds a fetcher. A Tor proxy address that cannot be
// turned into a dialer is an error.
func NewCollyFetcher(cfg CollyConfig, logger *zap.Logger) (*CollyFetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &CollyFetcher{
		cfg:    cfg,
		web:    newHTTPTransport(),
		logger: logger,
	}
	if strings.TrimSpace(cfg.TorProxyAddress) != "" {
		tor, err := newTorTransport(cfg.TorProxyAddress)
		if err != nil {
			return nil, err
		}
		f.tor = tor
	}
	return f, nil
}

// Fetch executes a single GET and extracts the page title and outbound links.
func (f *CollyFetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.Page, error) {
	transport := f.web
	if request.URLType == crawler.URLTypeTorHiddenService {
		if f.tor == nil {
			return crawler.Page{}, ErrTorUnavailable
		}
		transport = f.tor
	}

	var (
		page     crawler.Page
		fetchErr error
	)
	collector := f.buildCollector(transport, time.Now(), &page, &fetchErr)
	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		return crawler.Page{}, err
	}
	f.logger.Debug("page fetched",
		zap.String("execution_id", request.ExecutionID),
		zap.String("url", page.URL),
		zap.String("url_type", string(request.URLType)),
		zap.Int("status_code", page.StatusCode),
		zap.Int("links", len(page.Links)),
	)
	return page, nil
}

func (f *CollyFetcher) buildCollector(
	transport http.RoundTripper,
	start time.Time,
	page *crawler.Page,
	fetchErr *error,
) *colly.Collector {
	collector := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.MaxBodySize(f.cfg.MaxBodyBytes),
	)
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(transport)

	seen := make(map[string]struct{})
	collector.OnResponse(func(r *colly.Response) {
		*page = crawler.Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnHTML("title", func(e *colly.HTMLElement) {
		if page.Title == "" {
			page.Title = strings.TrimSpace(e.Text)
		}
	})
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link, ok := normalizeLink(e.Request.URL, e.Attr("href"))
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		page.Links = append(page.Links, link)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
	return collector
}

func (f *CollyFetcher) runCollector(ctx context.Context, collector *colly.Collector, target string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

// normalizeLink resolves href against base and keeps absolute http(s) URLs
// without fragments.
func normalizeLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
