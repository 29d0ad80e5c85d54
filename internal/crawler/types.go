package crawler

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// URLType describes how a task URL must be reached.
type URLType string

// URL types accepted by the gateway.
const (
	URLTypeWeb              URLType = "web"
	URLTypeTorHiddenService URLType = "tor_hidden_service"
)

// Operation is the kind of work a task performs.
type Operation string

// Operation values. Crawl discovers links and re-submits them; Scrape extracts a single page.
const (
	OperationCrawl  Operation = "crawl"
	OperationScrape Operation = "scrape"
)

// FetcherType selects the fetch strategy used by the executor.
type FetcherType string

// Fetcher types.
const (
	FetcherTypeColly FetcherType = "colly"
)

// LinkExtractorType selects the link extraction strategy used by the executor.
type LinkExtractorType string

// Link extractor types.
const (
	LinkExtractorTypeWeb LinkExtractorType = "web"
)

// Task is one unit of crawl or scrape work. It is a value: once built it is
// only ever moved between the frontier and a worker, never modified.
type Task struct {
	ExecutionID       string            `json:"execution_id"`
	Priority          uint8             `json:"priority"`
	URL               string            `json:"url"`
	URLType           URLType           `json:"url_type"`
	Operation         Operation         `json:"operation"`
	FetcherType       FetcherType       `json:"fetcher_type"`
	LinkExtractorType LinkExtractorType `json:"link_extractor_type"`
}

// NewTask builds a Task using the default fetcher and link extractor.
func NewTask(executionID string, priority uint8, rawURL string, urlType URLType, op Operation) Task {
	return Task{
		ExecutionID:       executionID,
		Priority:          priority,
		URL:               rawURL,
		URLType:           urlType,
		Operation:         op,
		FetcherType:       FetcherTypeColly,
		LinkExtractorType: LinkExtractorTypeWeb,
	}
}

// ParseURLType converts a wire name into a URLType.
func ParseURLType(s string) (URLType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(URLTypeWeb):
		return URLTypeWeb, nil
	case string(URLTypeTorHiddenService), "tor":
		return URLTypeTorHiddenService, nil
	default:
		return "", fmt.Errorf("unknown url_type %q", s)
	}
}

// ParseOperation converts a wire name into an Operation.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(OperationCrawl):
		return OperationCrawl, nil
	case string(OperationScrape):
		return OperationScrape, nil
	default:
		return "", fmt.Errorf("unknown operation %q", s)
	}
}

// UnmarshalText decodes a wire name, accepting the same spellings as ParseURLType.
func (t *URLType) UnmarshalText(text []byte) error {
	parsed, err := ParseURLType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// UnmarshalText decodes a wire name, accepting the same spellings as ParseOperation.
func (o *Operation) UnmarshalText(text []byte) error {
	parsed, err := ParseOperation(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// URLTypeFor infers the URL type of a discovered link from its host.
func URLTypeFor(rawURL string) URLType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return URLTypeWeb
	}
	if strings.HasSuffix(strings.ToLower(u.Hostname()), ".onion") {
		return URLTypeTorHiddenService
	}
	return URLTypeWeb
}

// FetchRequest captures everything needed to fetch a task URL.
type FetchRequest struct {
	ExecutionID       string
	URL               string
	URLType           URLType
	FetcherType       FetcherType
	LinkExtractorType LinkExtractorType
}

// Page is the result returned by a Fetcher implementation.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Title      string
	Links      []string
	Duration   time.Duration
}

// ScrapeResult is the record published for every scraped page.
type ScrapeResult struct {
	ExecutionID string    `json:"execution_id"`
	URL         string    `json:"url"`
	StatusCode  int       `json:"status_code"`
	Title       string    `json:"title"`
	ContentHash string    `json:"content_hash"`
	BlobURI     string    `json:"blob_uri"`
	DurationMs  int64     `json:"duration_ms"`
	FetchedAt   time.Time `json:"fetched_at"`
}
