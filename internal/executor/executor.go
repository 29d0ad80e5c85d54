package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/polzat/internal/crawler"
	"github.com/JakeFAU/polzat/internal/metrics"
	"github.com/JakeFAU/polzat/internal/telemetry"
)

// ErrDisallowed is returned when robots.txt forbids the task URL.
var ErrDisallowed = crawler.ErrDisallowed

const defaultContentType = "text/html; charset=utf-8"

// Config controls where scrape output goes.
type Config struct {
	// Topic is passed to the publisher with every scrape result.
	Topic string
	// BlobPrefix is prepended to every stored object path.
	BlobPrefix string
	// ContentType is recorded on stored page bodies.
	ContentType string
}

// Dependencies are the collaborators an Executor needs.
type Dependencies struct {
	Frontier  crawler.Pusher
	Validator crawler.Validator
	Fetcher   crawler.Fetcher
	BlobStore crawler.BlobStore
	Publisher crawler.Publisher
	Hasher    crawler.Hasher
	Clock     crawler.Clock
}

// Executor implements crawler.Executor.
type Executor struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
}

// New builds an Executor. All dependencies are required.
func New(deps Dependencies, cfg Config, logger *zap.Logger) (*Executor, error) {
	switch {
	case deps.Frontier == nil:
		return nil, errors.New("executor: frontier is required")
	case deps.Validator == nil:
		return nil, errors.New("executor: validator is required")
	case deps.Fetcher == nil:
		return nil, errors.New("executor: fetcher is required")
	case deps.BlobStore == nil:
		return nil, errors.New("executor: blob store is required")
	case deps.Publisher == nil:
		return nil, errors.New("executor: publisher is required")
	case deps.Hasher == nil:
		return nil, errors.New("executor: hasher is required")
	case deps.Clock == nil:
		return nil, errors.New("executor: clock is required")
	}
	if cfg.ContentType == "" {
		cfg.ContentType = defaultContentType
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{deps: deps, cfg: cfg, logger: logger}, nil
}

// Execute checks the task against robots.txt, fetches it and hands the page
// to the operation handler. Each call is one span.
func (e *Executor) Execute(ctx context.Context, task crawler.Task) error {
	ctx, span := telemetry.Tracer().Start(ctx, "task."+string(task.Operation),
		trace.WithAttributes(
			attribute.String("polzat.execution_id", task.ExecutionID),
			attribute.String("polzat.url_type", string(task.URLType)),
			attribute.Int("polzat.priority", int(task.Priority)),
			attribute.String("url.full", task.URL),
		),
	)
	defer span.End()

	err := e.execute(ctx, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (e *Executor) execute(ctx context.Context, task crawler.Task) error {
	if !e.deps.Validator.IsAllowed(ctx, task.URLType, task.URL) {
		return fmt.Errorf("%s: %w", task.URL, ErrDisallowed)
	}

	page, err := e.deps.Fetcher.Fetch(ctx, crawler.FetchRequest{
		ExecutionID:       task.ExecutionID,
		URL:               task.URL,
		URLType:           task.URLType,
		FetcherType:       task.FetcherType,
		LinkExtractorType: task.LinkExtractorType,
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", task.URL, err)
	}

	switch task.Operation {
	case crawler.OperationCrawl:
		return e.crawl(ctx, task, page)
	case crawler.OperationScrape:
		return e.scrape(ctx, task, page)
	default:
		return fmt.Errorf("unknown operation %q", task.Operation)
	}
}

func (e *Executor) crawl(ctx context.Context, task crawler.Task, page crawler.Page) error {
	metrics.ObserveDiscoveredLinks(len(page.Links))

	var (
		pushed  int
		skipped int
		errs    []error
	)
	for _, link := range page.Links {
		urlType := crawler.URLTypeFor(link)
		if !e.deps.Validator.IsAllowed(ctx, urlType, link) {
			skipped++
			continue
		}
		next := crawler.NewTask(task.ExecutionID, task.Priority, link, urlType, crawler.OperationScrape)
		if err := e.deps.Frontier.Push(next); err != nil {
			metrics.ObserveRejected("discovered")
			errs = append(errs, fmt.Errorf("push %s: %w", link, err))
			continue
		}
		metrics.ObserveScheduled(string(next.Operation), "discovered")
		pushed++
	}

	e.logger.Info("crawl finished",
		zap.String("execution_id", task.ExecutionID),
		zap.String("url", task.URL),
		zap.Int("links", len(page.Links)),
		zap.Int("scheduled", pushed),
		zap.Int("disallowed", skipped),
	)
	return errors.Join(errs...)
}

func (e *Executor) scrape(ctx context.Context, task crawler.Task, page crawler.Page) error {
	digest, err := e.deps.Hasher.Hash(page.Body)
	if err != nil {
		return fmt.Errorf("hash body: %w", err)
	}

	objectPath := e.objectPath(task.ExecutionID, digest)
	uri, err := e.deps.BlobStore.PutObject(ctx, objectPath, e.cfg.ContentType, bytes.NewReader(page.Body))
	if err != nil {
		return fmt.Errorf("store body: %w", err)
	}

	result := crawler.ScrapeResult{
		ExecutionID: task.ExecutionID,
		URL:         page.URL,
		StatusCode:  page.StatusCode,
		Title:       page.Title,
		ContentHash: digest,
		BlobURI:     uri,
		DurationMs:  page.Duration.Milliseconds(),
		FetchedAt:   e.deps.Clock.Now(),
	}
	if result.URL == "" {
		result.URL = task.URL
	}
	msgID, err := e.deps.Publisher.Publish(ctx, e.cfg.Topic, result)
	if err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	metrics.ObservePageScraped(result.URL, result.StatusCode, len(page.Body))

	e.logger.Info("scrape stored",
		zap.String("execution_id", task.ExecutionID),
		zap.String("url", result.URL),
		zap.String("blob_uri", uri),
		zap.String("message_id", msgID),
	)
	return nil
}

func (e *Executor) objectPath(executionID, digest string) string {
	id := strings.Trim(executionID, "/")
	if id == "" {
		id = "unassigned"
	}
	return path.Join(e.cfg.BlobPrefix, id, digest+".html")
}
