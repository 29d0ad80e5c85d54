// Package app builds the long-lived services of polzatd from configuration
// and runs them until shutdown. It is the daemon's dependency injection
// container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/polzat/internal/api"
	"github.com/JakeFAU/polzat/internal/clock/system"
	"github.com/JakeFAU/polzat/internal/config"
	"github.com/JakeFAU/polzat/internal/crawler"
	"github.com/JakeFAU/polzat/internal/executor"
	"github.com/JakeFAU/polzat/internal/frontier"
	"github.com/JakeFAU/polzat/internal/hash/sha256"
	"github.com/JakeFAU/polzat/internal/id/uuid"
	"github.com/JakeFAU/polzat/internal/politeness"
	memorypublisher "github.com/JakeFAU/polzat/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/polzat/internal/publisher/pubsub"
	"github.com/JakeFAU/polzat/internal/scheduler"
	"github.com/JakeFAU/polzat/internal/storage/gcs"
	"github.com/JakeFAU/polzat/internal/storage/local"
	memorystorage "github.com/JakeFAU/polzat/internal/storage/memory"
)

const shutdownTimeout = 10 * time.Second

// App holds every service the daemon runs.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	frontier  *frontier.Frontier
	validator *politeness.Validator
	scheduler *scheduler.Scheduler
	server    *api.Server
	blobs     crawler.BlobStore
	publisher crawler.Publisher
	closers   []func() error
}

// New wires the frontier, validator, executor, scheduler and gateway. Cloud
// clients are created only when their config keys are set; anything already
// opened is closed again if a later step fails.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	blobs, err := a.newBlobStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.blobs = blobs

	publisher, err := a.newPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.publisher = publisher

	a.frontier = frontier.New(cfg.Frontier.Capacity)
	a.validator = politeness.New(politeness.Config{
		UserAgent:    cfg.Politeness.UserAgent,
		FetchTimeout: cfg.RobotsTimeout(),
		MaxBodyBytes: cfg.Politeness.MaxBodyBytes,
		SingleFlight: cfg.Politeness.SingleFlight,
	}, nil, logger.Named("politeness"))

	fetcher, err := executor.NewCollyFetcher(executor.CollyConfig{
		UserAgent:       cfg.HTTP.UserAgent,
		Timeout:         cfg.FetchTimeout(),
		MaxBodyBytes:    cfg.HTTP.MaxBodyBytes,
		TorProxyAddress: cfg.Tor.ProxyAddress,
	}, logger.Named("fetcher"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init fetcher: %w", err)
	}

	exec, err := executor.New(executor.Dependencies{
		Frontier:  a.frontier,
		Validator: a.validator,
		Fetcher:   fetcher,
		BlobStore: a.blobs,
		Publisher: a.publisher,
		Hasher:    sha256.New(),
		Clock:     system.New(),
	}, executor.Config{
		Topic:       cfg.PubSub.TopicName,
		BlobPrefix:  cfg.Storage.Prefix,
		ContentType: cfg.Storage.ContentType,
	}, logger.Named("executor"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init executor: %w", err)
	}

	a.scheduler = scheduler.New(a.frontier, exec, scheduler.Config{
		Ceiling:           cfg.Scheduler.ThreadCount,
		SaturationBackoff: cfg.SaturationBackoff(),
		IdleBackoff:       cfg.IdleBackoff(),
	}, logger.Named("scheduler"))

	a.server = api.NewServer(a.frontier, a.scheduler, a.validator, uuid.New(), cfg, logger.Named("api"))
	a.logger.Info("daemon assembled",
		zap.Int("threads", a.scheduler.Ceiling()),
		zap.Int("frontier_capacity", a.frontier.Capacity()),
	)
	return a, nil
}

func (a *App) newBlobStore(ctx context.Context) (crawler.BlobStore, error) {
	switch {
	case a.cfg.Storage.GCSBucket != "":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		a.logger.Info("using gcs blob store", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return store, nil
	case a.cfg.Storage.LocalDir != "":
		store, err := local.New(local.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local blob store: %w", err)
		}
		a.logger.Info("using local blob store", zap.String("dir", a.cfg.Storage.LocalDir))
		return store, nil
	default:
		a.logger.Info("using in-memory blob store")
		return memorystorage.NewBlobStore(), nil
	}
}

func (a *App) newPublisher(ctx context.Context) (crawler.Publisher, error) {
	if !a.cfg.PubSubEnabled() {
		a.logger.Info("using in-memory result publisher")
		return memorypublisher.New(), nil
	}
	client, err := gpubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	pub := pubsubpublisher.New(client.Topic(a.cfg.PubSub.TopicName))
	// Stop must flush before the client closes; closers run in reverse.
	a.closers = append(a.closers, func() error {
		pub.Stop()
		return nil
	})
	a.logger.Info("using pubsub result publisher",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return pub, nil
}

// Handler exposes the gateway's HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run serves the gateway on ln and runs the scheduler loop until ctx is
// done. It then stops accepting requests and waits for dispatched tasks.
func (a *App) Run(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var (
		wg       sync.WaitGroup
		serveErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.scheduler.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
			cancel()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	wg.Wait()
	a.logger.Info("shutdown complete", zap.Int("pending", a.frontier.Len()))
	return serveErr
}

// Close releases cloud clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}
