package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"onion host", "http://abcdef.onion/x", "abcdef.onion"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if tasksScheduledTotal == nil || tasksCompletedTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveHelpers(t *testing.T) {
	Init()

	before := testutil.ToFloat64(tasksCompletedTotal.WithLabelValues("scrape", "success"))
	ObserveCompleted("scrape", "success")
	if got := testutil.ToFloat64(tasksCompletedTotal.WithLabelValues("scrape", "success")); got != before+1 {
		t.Errorf("expected completed counter %f, got %f", before+1, got)
	}

	SetInFlight(3)
	if got := testutil.ToFloat64(tasksInFlight); got != 3 {
		t.Errorf("expected in-flight gauge 3, got %f", got)
	}

	SetFrontierPending(12)
	if got := testutil.ToFloat64(frontierPending); got != 12 {
		t.Errorf("expected pending gauge 12, got %f", got)
	}

	denyBefore := testutil.ToFloat64(robotsDecisionsTotal.WithLabelValues("deny"))
	ObserveRobotsDecision(false)
	if got := testutil.ToFloat64(robotsDecisionsTotal.WithLabelValues("deny")); got != denyBefore+1 {
		t.Errorf("expected deny counter %f, got %f", denyBefore+1, got)
	}

	linksBefore := testutil.ToFloat64(discoveredLinksTotal)
	ObserveDiscoveredLinks(0)
	ObserveDiscoveredLinks(4)
	if got := testutil.ToFloat64(discoveredLinksTotal); got != linksBefore+4 {
		t.Errorf("expected discovered links %f, got %f", linksBefore+4, got)
	}

	pagesBefore := testutil.ToFloat64(pagesScrapedTotal.WithLabelValues("example.com", "200"))
	bytesBefore := testutil.ToFloat64(scrapedBytesTotal.WithLabelValues("example.com"))
	ObservePageScraped("https://Example.com/a", 200, 512)
	if got := testutil.ToFloat64(pagesScrapedTotal.WithLabelValues("example.com", "200")); got != pagesBefore+1 {
		t.Errorf("expected scraped pages %f, got %f", pagesBefore+1, got)
	}
	if got := testutil.ToFloat64(scrapedBytesTotal.WithLabelValues("example.com")); got != bytesBefore+512 {
		t.Errorf("expected scraped bytes %f, got %f", bytesBefore+512, got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
