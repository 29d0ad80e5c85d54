// Package metrics exposes Prometheus collectors for the polzat daemon.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tasksScheduledTotal        *prometheus.CounterVec
	tasksRejectedTotal         *prometheus.CounterVec
	tasksCompletedTotal        *prometheus.CounterVec
	tasksInFlight              prometheus.Gauge
	frontierPending            prometheus.Gauge
	robotsFetchesTotal         *prometheus.CounterVec
	robotsDecisionsTotal       *prometheus.CounterVec
	robotsTLSFallbackTotal     prometheus.Counter
	discoveredLinksTotal       prometheus.Counter
	pagesScrapedTotal          *prometheus.CounterVec
	scrapedBytesTotal          *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; every Observe helper calls it.
func Init() {
	once.Do(func() {
		tasksScheduledTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polzat_tasks_scheduled_total",
				Help: "Total number of tasks accepted into the frontier, labeled by operation and source.",
			},
			[]string{"operation", "source"},
		)

		tasksRejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polzat_tasks_rejected_total",
				Help: "Total number of tasks the frontier refused, labeled by source.",
			},
			[]string{"source"},
		)

		tasksCompletedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polzat_tasks_completed_total",
				Help: "Total number of executed tasks, labeled by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		)

		tasksInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "polzat_tasks_in_flight",
				Help: "Number of tasks currently executing in the worker pool.",
			},
		)

		frontierPending = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "polzat_frontier_pending",
				Help: "Number of tasks waiting in the frontier.",
			},
		)

		robotsFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polzat_robots_fetches_total",
				Help: "Total robots.txt fetches, labeled by result.",
			},
			[]string{"result"},
		)

		robotsDecisionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polzat_robots_decisions_total",
				Help: "Total politeness decisions, labeled by decision.",
			},
			[]string{"decision"},
		)

		robotsTLSFallbackTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "polzat_robots_tls_handshake_fallback_total",
				Help: "Total robots.txt fetches that fell back to allow-all after TLS handshake timeouts.",
			},
		)

		discoveredLinksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "polzat_discovered_links_total",
				Help: "Total links re-submitted to the frontier by crawl tasks.",
			},
		)

		pagesScrapedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polzat_pages_scraped_total",
				Help: "Total number of pages stored by scrape tasks, labeled by site and status code.",
			},
			[]string{"site", "status"},
		)

		scrapedBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polzat_scraped_bytes_total",
				Help: "Total page body bytes stored by scrape tasks, labeled by site.",
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveScheduled counts a task accepted into the frontier.
func ObserveScheduled(operation, source string) {
	Init()
	tasksScheduledTotal.WithLabelValues(operation, source).Inc()
}

// ObserveRejected counts a task the frontier refused.
func ObserveRejected(source string) {
	Init()
	tasksRejectedTotal.WithLabelValues(source).Inc()
}

// ObserveCompleted counts a finished task.
func ObserveCompleted(operation, outcome string) {
	Init()
	tasksCompletedTotal.WithLabelValues(operation, outcome).Inc()
}

// SetInFlight records the current in-flight count.
func SetInFlight(n int64) {
	Init()
	tasksInFlight.Set(float64(n))
}

// SetFrontierPending records the current frontier depth.
func SetFrontierPending(n int) {
	Init()
	frontierPending.Set(float64(n))
}

// ObserveRobotsFetch counts a robots.txt fetch by result ("ok", "error", "status").
func ObserveRobotsFetch(result string) {
	Init()
	robotsFetchesTotal.WithLabelValues(result).Inc()
}

// ObserveRobotsDecision counts an allow or deny decision.
func ObserveRobotsDecision(allowed bool) {
	Init()
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	robotsDecisionsTotal.WithLabelValues(decision).Inc()
}

// ObserveRobotsTLSFallback increments the robots TLS handshake fallback counter.
func ObserveRobotsTLSFallback() {
	Init()
	robotsTLSFallbackTotal.Inc()
}

// ObserveDiscoveredLinks adds to the discovered link counter.
func ObserveDiscoveredLinks(n int) {
	Init()
	if n > 0 {
		discoveredLinksTotal.Add(float64(n))
	}
}

// ObservePageScraped records a stored page for its site.
func ObservePageScraped(rawURL string, status int, bytes int) {
	Init()
	site := SanitizeSite(rawURL)
	pagesScrapedTotal.WithLabelValues(site, strconv.Itoa(status)).Inc()
	if bytes > 0 {
		scrapedBytesTotal.WithLabelValues(site).Add(float64(bytes))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
