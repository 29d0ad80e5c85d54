package politeness

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/polzat/internal/crawler"
	"github.com/JakeFAU/polzat/internal/metrics"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultMaxBodyBytes = 1 << 20
)

// Config controls robots fetching.
type Config struct {
	UserAgent    string
	FetchTimeout time.Duration
	MaxBodyBytes int64
	// SingleFlight collapses concurrent fetches for the same uncached domain
	// into one request. When false, concurrent misses may each fetch.
	SingleFlight bool
}

// Validator answers allow/deny for URLs using a per-domain robots cache.
type Validator struct {
	cfg     Config
	client  *http.Client
	cache   sync.Map // domain -> *Matcher
	group   singleflight.Group
	cached  atomic.Int64
	fetches atomic.Int64
	logger  *zap.Logger
}

// New builds a Validator. A nil client gets a default one with the configured
// timeout and a transport that tolerates robots TLS handshake timeouts.
func New(cfg Config, client *http.Client, logger *zap.Logger) *Validator {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if client == nil {
		client = &http.Client{
			Timeout:   cfg.FetchTimeout,
			Transport: newRobotsTransport(nil),
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
}

// IsAllowed implements crawler.Validator.
func (v *Validator) IsAllowed(ctx context.Context, urlType crawler.URLType, rawURL string) bool {
	if urlType == crawler.URLTypeTorHiddenService {
		return true
	}
	scheme, domain, path := splitURL(rawURL)
	if domain == "" {
		return true
	}
	allowed := !v.matcherFor(ctx, scheme, domain).Match(path)
	metrics.ObserveRobotsDecision(allowed)
	if !allowed {
		v.logger.Debug("url disallowed by robots", zap.String("domain", domain), zap.String("path", path))
	}
	return allowed
}

// CacheSize returns the number of domains with a cached policy.
func (v *Validator) CacheSize() int {
	return int(v.cached.Load())
}

// Fetches returns the number of robots.txt fetches attempted so far.
func (v *Validator) Fetches() int64 {
	return v.fetches.Load()
}

// Cached returns the cached matcher for a domain, if any.
func (v *Validator) Cached(domain string) (*Matcher, bool) {
	m, ok := v.cache.Load(strings.ToLower(domain))
	if !ok {
		return nil, false
	}
	matcher, ok := m.(*Matcher)
	return matcher, ok
}

func (v *Validator) matcherFor(ctx context.Context, scheme, domain string) *Matcher {
	if m, ok := v.Cached(domain); ok {
		return m
	}
	// Policies are keyed by bare domain, so http and https share whichever
	// scheme's robots.txt the first miss fetched.
	if !v.cfg.SingleFlight {
		return v.fetchAndStore(ctx, scheme, domain)
	}
	// The shared fetch must not be cut short by whichever caller started it.
	fetchCtx := context.WithoutCancel(ctx)
	res, _, _ := v.group.Do(domain, func() (any, error) {
		if m, ok := v.Cached(domain); ok {
			return m, nil
		}
		return v.fetchAndStore(fetchCtx, scheme, domain), nil
	})
	m, ok := res.(*Matcher)
	if !ok {
		return matchNothing
	}
	return m
}

func (v *Validator) fetchAndStore(ctx context.Context, scheme, domain string) *Matcher {
	m, err := v.fetch(ctx, scheme, domain)
	if err != nil {
		v.logger.Warn("robots fetch failed; allowing access", zap.String("domain", domain), zap.Error(err))
		if ctx.Err() != nil {
			// Caller gave up; leave the domain uncached so a later lookup retries.
			return matchNothing
		}
	}
	actual, loaded := v.cache.LoadOrStore(domain, m)
	if !loaded {
		v.cached.Add(1)
	}
	stored, ok := actual.(*Matcher)
	if !ok {
		return matchNothing
	}
	return stored
}

// fetch always returns a usable matcher; on error it is matchNothing.
func (v *Validator) fetch(ctx context.Context, scheme, domain string) (*Matcher, error) {
	v.fetches.Add(1)
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		metrics.ObserveRobotsFetch("error")
		return matchNothing, fmt.Errorf("new robots request: %w", err)
	}
	if v.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", v.cfg.UserAgent)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		metrics.ObserveRobotsFetch("error")
		return matchNothing, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			v.logger.Debug("failed to close robots response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		metrics.ObserveRobotsFetch("status")
		return matchNothing, fmt.Errorf("fetch robots: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, v.cfg.MaxBodyBytes))
	if err != nil {
		metrics.ObserveRobotsFetch("error")
		return matchNothing, fmt.Errorf("read robots body: %w", err)
	}
	metrics.ObserveRobotsFetch("ok")
	m := Parse(body)
	v.logger.Debug("robots policy cached", zap.String("domain", domain), zap.Strings("disallow", m.Rules()))
	return m, nil
}

// splitURL strips a leading http:// or https:// and splits the remainder at
// the first "/". The path is "*" when there is none.
func splitURL(rawURL string) (scheme, domain, path string) {
	scheme = "http"
	rest := rawURL
	if after, ok := strings.CutPrefix(rawURL, "https://"); ok {
		scheme, rest = "https", after
	} else if after, ok := strings.CutPrefix(rawURL, "http://"); ok {
		rest = after
	}
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return scheme, strings.ToLower(rest), "*"
	}
	return scheme, strings.ToLower(rest[:idx]), rest[idx:]
}
