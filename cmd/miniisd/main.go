// Command miniisd runs the MINIIS3 backend: the daily settlement workflow,
// the mini-app REST API, and an optional in-process scheduler.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/miniis3/lotteryd/internal/chain"
	"github.com/miniis3/lotteryd/internal/config"
	"github.com/miniis3/lotteryd/internal/extractor"
	"github.com/miniis3/lotteryd/internal/farcaster"
	"github.com/miniis3/lotteryd/internal/httpapi"
	"github.com/miniis3/lotteryd/internal/kv"
	"github.com/miniis3/lotteryd/internal/metrics"
	"github.com/miniis3/lotteryd/internal/notify"
	"github.com/miniis3/lotteryd/internal/settlement"
	"github.com/miniis3/lotteryd/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("miniisd").WithError(err).Fatal("configuration invalid")
	}
	log := logger.New("miniisd", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("backend exited")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	sources, err := config.LoadSources(cfg.SourcesPath)
	if err != nil {
		return err
	}
	profile, ok := sources[cfg.ResultSource]
	if !ok {
		return errors.New("unknown result source " + cfg.ResultSource)
	}
	src, err := extractor.NewSource(profile, nil, log)
	if err != nil {
		return err
	}
	ext := extractor.New(src, cfg.FetchAttempts, cfg.FetchCooldown, log)

	gateway, err := chain.NewClient(ctx, chain.Config{
		RPCURL:          cfg.RPCURL,
		ContractAddress: cfg.ContractAddress,
		OwnerPrivateKey: cfg.OwnerPrivateKey,
		ChainID:         cfg.ChainID,
		Timeout:         cfg.RPCTimeout,
		ReadRateLimit:   cfg.RPCRateLimit,
	}, log)
	if err != nil {
		return err
	}
	defer gateway.Close()

	store, err := kv.NewRedisStore(ctx, cfg.RedisURL, cfg.KeyPrefix)
	if err != nil {
		return err
	}
	defer store.Close()

	var users *farcaster.Client
	if cfg.NeynarAPIKey != "" {
		users = farcaster.NewClient(cfg.NeynarAPIKey, log)
	}

	var notifier notify.Notifier
	if cfg.ManagedNotifications() {
		notifier = notify.NewManaged(users, cfg.AppURL, log)
		log.Info("using managed notification delivery")
	} else {
		notifier = notify.NewSelfHosted(store, cfg.AppURL, log)
		log.Info("using self-hosted notification delivery")
	}

	workflow := settlement.New(gateway, ext, store, notifier, settlement.Options{
		AppName:          cfg.AppName,
		AdvanceOnSkip:    cfg.AdvanceOnSkip,
		ScanConcurrency:  cfg.ScanConcurrency,
		ManagedBroadcast: cfg.ManagedNotifications(),
	}, log)

	if cfg.CronSchedule != "" {
		scheduler, err := startScheduler(ctx, cfg, workflow, log)
		if err != nil {
			return err
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	handler := httpapi.NewHandler(cfg, workflow, store, users, notifier, log)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("http server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// startScheduler triggers the settlement workflow on the configured cron
// schedule. The daily cutoff still applies, so a schedule that fires early
// simply waits for the next tick.
func startScheduler(ctx context.Context, cfg *config.Config, workflow *settlement.Workflow, log *logger.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(cfg.CronSchedule, func() {
		if cfg.BeforeCutoff(time.Now()) {
			log.Debug("scheduled trigger before cutoff, skipping")
			return
		}
		rep, err := workflow.Run(ctx)
		outcome := string(rep.Outcome)
		if outcome == "" {
			outcome = "failed"
		}
		metrics.SettlementRuns.WithLabelValues(outcome).Inc()
		if err != nil {
			log.WithError(err).WithField("round", rep.Round).Error("scheduled settlement failed")
			return
		}
		log.WithField("round", rep.Round).WithField("outcome", rep.Outcome).Info("scheduled settlement finished")
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	log.WithField("schedule", cfg.CronSchedule).Info("settlement scheduler started")
	return c, nil
}
