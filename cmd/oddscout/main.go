// Package main wires together the signal service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/avoronin/oddscout/internal/api"
	"github.com/avoronin/oddscout/internal/classify"
	"github.com/avoronin/oddscout/internal/clock/system"
	"github.com/avoronin/oddscout/internal/config"
	"github.com/avoronin/oddscout/internal/delivery"
	"github.com/avoronin/oddscout/internal/feed"
	feedmemory "github.com/avoronin/oddscout/internal/feed/memory"
	"github.com/avoronin/oddscout/internal/hockey"
	"github.com/avoronin/oddscout/internal/hockey/nhl"
	"github.com/avoronin/oddscout/internal/logging"
	"github.com/avoronin/oddscout/internal/metrics"
	memorypublisher "github.com/avoronin/oddscout/internal/publisher/memory"
	pubsubpublisher "github.com/avoronin/oddscout/internal/publisher/pubsub"
	"github.com/avoronin/oddscout/internal/scanner"
	"github.com/avoronin/oddscout/internal/sched"
	"github.com/avoronin/oddscout/internal/settle"
	domainsignal "github.com/avoronin/oddscout/internal/signal"
	"github.com/avoronin/oddscout/internal/snapshot"
	"github.com/avoronin/oddscout/internal/store"
	storememory "github.com/avoronin/oddscout/internal/store/memory"
	"github.com/avoronin/oddscout/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	matches, err := snapshot.Open(cfg.Store.SnapshotPath, logger)
	if err != nil {
		return fmt.Errorf("opening match snapshot: %w", err)
	}

	var (
		signals     store.SignalStore
		subscribers store.SubscriberStore
	)
	switch cfg.Store.Provider {
	case "postgres":
		stores, err := postgres.New(ctx, postgres.Config{DSN: cfg.Store.DSN})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer stores.Close()
		if err := stores.InitSchema(ctx); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
		signals = stores.Signals
		subscribers = stores.Subscribers
	default:
		signals = storememory.NewSignalStore()
		subscribers = storememory.NewSubscriberStore()
	}

	// The platform client is injected at deploy time; the in-memory client
	// keeps local runs and tests self-contained.
	fetcher := feed.NewFetcher(feedmemory.NewClient(), feed.FetcherConfig{
		MaxWait: cfg.FeedMaxWait(),
		RPS:     cfg.Feed.RPS,
		Burst:   cfg.Feed.Burst,
	}, logger)

	classifier := classify.New(classify.Config{
		Topics:    cfg.Scanner.Topics,
		Hints:     cfg.Scanner.Hints,
		HintGates: cfg.Scanner.HintGates,
	})
	clock := system.New()
	scan := scanner.New(fetcher, classifier, matches, clock, scanner.Config{
		MaxSources: cfg.Scanner.MaxSources,
		MaxItems:   cfg.Scanner.MaxItems,
		LinkBase:   cfg.Scanner.LinkBase,
	}, logger)

	feeds := make(map[string]hockey.Feed)
	for _, league := range cfg.Signals.Leagues {
		switch league {
		case "NHL":
			feeds[league] = nhl.New(nhl.Config{
				BaseURL: cfg.Signals.NHL.BaseURL,
				Timeout: cfg.NHLTimeout(),
			})
		default:
			logger.Warn("no feed for league, skipping", zap.String("league", league))
		}
	}
	generator := domainsignal.NewGenerator(feeds, logger)
	reconciler := settle.New(signals, feeds, logger)

	var publisher delivery.Publisher
	if cfg.PubSub.ProjectID != "" {
		ps, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			return fmt.Errorf("creating pubsub publisher: %w", err)
		}
		defer func() {
			if err := ps.Close(); err != nil {
				logger.Warn("pubsub close failed", zap.Error(err))
			}
		}()
		publisher = ps
	} else {
		logger.Warn("pubsub not configured, messages stay in memory")
		publisher = memorypublisher.New()
	}

	deliverer := delivery.New(generator, signals, subscribers, publisher, delivery.Config{
		MinConfidence:  cfg.Schedule.MinConfidence,
		Leagues:        cfg.Schedule.Leagues,
		MaxPerDelivery: cfg.Schedule.MaxPerDelivery,
	}, logger)

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", cfg.Schedule.Timezone, err)
	}
	daily := func(ctx context.Context, now time.Time) error {
		if _, err := scan.Run(ctx); err != nil {
			logger.Error("scan pass failed", zap.Error(err))
		}
		return deliverer.Run(ctx, now)
	}
	settleActivity := func(ctx context.Context, _ time.Time) error {
		return reconciler.Run(ctx)
	}
	scheduler, err := sched.New(sched.Config{
		DailyTime:          cfg.Schedule.DailyTime,
		Location:           loc,
		SettleInterval:     cfg.SettleInterval(),
		SettleInitialDelay: cfg.SettleInitialDelay(),
	}, clock, daily, settleActivity, logger)
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(signals, subscribers, matches, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	schedDone := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(schedDone)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	<-schedDone
	return nil
}
