// Package app initializes and holds the long-lived services of one crawler
// process, acting as a small dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/clock/system"
	"github.com/JakeFAU/listing-crawler/internal/config"
	"github.com/JakeFAU/listing-crawler/internal/crawler"
	"github.com/JakeFAU/listing-crawler/internal/document"
	collyfetcher "github.com/JakeFAU/listing-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/listing-crawler/internal/hash/sha256"
	"github.com/JakeFAU/listing-crawler/internal/id/uuid"
	"github.com/JakeFAU/listing-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/listing-crawler/internal/storage/gcs"
	"github.com/JakeFAU/listing-crawler/internal/storage/local"
	"github.com/JakeFAU/listing-crawler/internal/storage/memory"
	"github.com/JakeFAU/listing-crawler/internal/storage/postgres"
)

// App holds the services wired from a Config. Build it once per process and
// Close it when the command finishes.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	runID   string
	clock   *system.Clock
	counter *crawler.PageCounter
	crawler *crawler.Crawler

	capture crawler.BlobStore
	sink    crawler.MultiSink
	memory  *memory.RecordStore

	closers []func() error
}

// New wires every service named in cfg. Any initialization failure releases
// what was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	a := &App{cfg: cfg, logger: logger.With(zap.String("run_id", runID)), runID: runID, clock: system.New()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	layout := cfg.CrawlerLayout()
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}

	if a.capture, err = a.buildCapture(ctx); err != nil {
		return nil, err
	}
	if a.sink, err = a.buildSinks(ctx); err != nil {
		return nil, err
	}

	fetcher := collyfetcher.New(cfg.FetcherConfig(), a.logger.Named("fetcher"))
	parser := document.NewParser()
	extractor, err := crawler.NewExtractor(layout)
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	a.counter = crawler.NewPageCounter(
		fetcher,
		parser,
		a.capture,
		cfg.Output.ErrorCapturePath,
		layout,
		a.logger.Named("counter"),
	)

	crawlCfg := cfg.CrawlerConfig()
	crawlCfg.RunID = runID
	a.crawler = crawler.New(
		crawlCfg,
		a.counter,
		fetcher,
		parser,
		extractor,
		a.sink,
		ratelimit.New(cfg.RateLimitConfig()),
		cfg.RetryPolicy(),
		a.clock,
		uuid.New(),
		a.logger.Named("crawler"),
	).WithHasher(sha256.New())
	a.logger.Info("application services initialized",
		zap.Strings("sinks", cfg.Output.Sinks),
		zap.String("capture_backend", cfg.Storage.Backend),
	)
	return a, nil
}

func (a *App) buildCapture(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, a.cfg.Storage.GCS)
		if err != nil {
			return nil, fmt.Errorf("gcs blob store: %w", err)
		}
		return store, nil
	case config.BackendMemory:
		return memory.NewBlobStore(), nil
	default:
		store, err := local.New(a.cfg.Storage.Local)
		if err != nil {
			return nil, fmt.Errorf("local blob store: %w", err)
		}
		return store, nil
	}
}

func (a *App) buildSinks(ctx context.Context) (crawler.MultiSink, error) {
	var sinks crawler.MultiSink
	for _, name := range a.cfg.Output.Sinks {
		switch name {
		case config.SinkFile:
			format, err := local.ParseFormat(a.cfg.Output.Format)
			if err != nil {
				return nil, fmt.Errorf("output.format: %w", err)
			}
			file, err := local.NewRecordFile(a.cfg.Output.Path, format)
			if err != nil {
				return nil, fmt.Errorf("record file: %w", err)
			}
			a.logger.Info("appending records to file",
				zap.String("path", file.Path()), zap.String("format", string(format)))
			sinks = append(sinks, file)
		case config.SinkPostgres:
			storeCfg := a.cfg.RecordStoreConfig(a.runID)
			storeCfg.Now = a.clock.Now
			store, err := postgres.NewRecordStore(ctx, storeCfg)
			if err != nil {
				return nil, fmt.Errorf("postgres record store: %w", err)
			}
			a.closers = append(a.closers, func() error { store.Close(); return nil })
			if a.cfg.DB.EnsureTable {
				if err := store.EnsureTable(ctx); err != nil {
					return nil, err
				}
			}
			sinks = append(sinks, store)
		case config.SinkMemory:
			a.memory = memory.NewRecordStore()
			sinks = append(sinks, a.memory)
		default:
			return nil, fmt.Errorf("unknown sink %q", name)
		}
	}
	return sinks, nil
}

// RunID returns the identifier attached to this process's crawl.
func (a *App) RunID() string { return a.runID }

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Crawler returns the configured crawl orchestrator.
func (a *App) Crawler() *crawler.Crawler { return a.crawler }

// Counter returns the page counter used by the crawler.
func (a *App) Counter() *crawler.PageCounter { return a.counter }

// MemoryRecords returns the records held by the in-memory sink, if configured.
func (a *App) MemoryRecords() []crawler.Record {
	if a.memory == nil {
		return nil
	}
	return a.memory.Records()
}

// Close releases every opened resource in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing application services", zap.Error(err))
		return err
	}
	a.logger.Debug("application services closed")
	return nil
}
