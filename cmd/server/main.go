// Package main is the entry point for the PXI service: a single binary that
// ingests systemic-stress indicators on a per-minute cron, computes the
// composite PXI, classifies both threshold and k-means discovered regimes,
// and serves the result over a read-only HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/backup"
	"github.com/aristath/pxi/internal/cache"
	"github.com/aristath/pxi/internal/catalog"
	"github.com/aristath/pxi/internal/clients"
	"github.com/aristath/pxi/internal/composite"
	"github.com/aristath/pxi/internal/config"
	"github.com/aristath/pxi/internal/database"
	"github.com/aristath/pxi/internal/regime"
	"github.com/aristath/pxi/internal/scheduler"
	"github.com/aristath/pxi/internal/server"
	"github.com/aristath/pxi/internal/store"
	"github.com/aristath/pxi/internal/webhook"
	"github.com/aristath/pxi/pkg/logger"
)

const (
	ingestScheduleFallback = "0 * * * * *" // every minute, seconds-first
	technicalSchedule      = "0 0 6,18 * * *"
	validationSchedule     = "0 30 0 * * *"
	regimeSchedule         = "0 0 2 * * *"
	backupSchedule         = "0 0 3 * * *"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Level: "info", Pretty: true}).Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)
	log.Info().Msg("starting pxi")

	db, err := database.New(database.Config{
		Path:    cfg.SQLitePath,
		URL:     cfg.DatabaseURL,
		PoolMax: cfg.DBPoolMax,
		PoolMin: cfg.DBPoolMin,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	ctx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(ctx); err != nil {
		cancelMigrate()
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	cancelMigrate()

	st := store.New(db, log)

	var notifier scheduler.Notifier
	if cfg.AlertEnabled {
		notifier = webhook.New(cfg.AlertWebhookURL, log)
	}

	fetchers := buildFetchers(cfg, log)
	overridesFetchers := buildOverridesFetchers(cfg, log)

	var memCache *cache.Cache
	if cfg.CacheEnabled {
		memCache = cache.New(cfg.CacheTTL)
		defer memCache.Close()
	}

	state := scheduler.NewState()

	tickJob := scheduler.NewTickJob(fetchers, st, state, notifier, composite.Config{Cap: cfg.MaxMetricContribution}, log)
	technicalJob := scheduler.NewTechnicalJob(overridesFetchers, state, log)
	validationJob := scheduler.NewValidationJob(st, log)

	detector := regime.New(regimeIndicatorIDs(), log)
	persistence := regime.NewPersistence(st)
	regimeJob := scheduler.NewRegimeJob(detector, persistence, st, state, notifier, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(toSecondsFirstCron(cfg.IngestCron), tickJob); err != nil {
		log.Fatal().Err(err).Msg("failed to register ingest tick job")
	}
	if err := sched.AddJob(technicalSchedule, technicalJob); err != nil {
		log.Fatal().Err(err).Msg("failed to register technical signal job")
	}
	if err := sched.AddJob(validationSchedule, validationJob); err != nil {
		log.Fatal().Err(err).Msg("failed to register validation job")
	}
	if err := sched.AddJob(regimeSchedule, regimeJob); err != nil {
		log.Fatal().Err(err).Msg("failed to register regime detection job")
	}

	if cfg.BackupEnabled {
		backupJob, err := buildBackupJob(cfg, db, log)
		if err != nil {
			log.Error().Err(err).Msg("backup enabled but could not be wired, skipping")
		} else if err := sched.AddJob(backupSchedule, backupJob); err != nil {
			log.Fatal().Err(err).Msg("failed to register backup job")
		}
	}

	httpServer := server.New(server.Config{
		Log:    log,
		Store:  st,
		Cache:  memCache,
		State:  state,
		Config: cfg,
	})
	tickJob.SetBroadcaster(httpServer)

	sched.Start()
	defer sched.Stop()

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("pxi is running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during http server shutdown")
	}
}

// toSecondsFirstCron adapts INGEST_CRON, a standard 5-field (minute-first)
// expression as documented in the environment, to the 6-field
// seconds-first form robfig/cron/v3 expects when built WithSeconds.
func toSecondsFirstCron(expr string) string {
	if expr == "" {
		return ingestScheduleFallback
	}
	if len(strings.Fields(expr)) >= 6 {
		return expr
	}
	return "0 " + expr
}

// buildFetchers wires one clients.Fetcher per catalog indicator, grouped by
// provider. A provider with an empty API key is skipped entirely rather
// than left to fail every tick.
func buildFetchers(cfg *config.Config, log zerolog.Logger) []clients.Fetcher {
	var fetchers []clients.Fetcher

	if cfg.FREDAPIKey != "" {
		fred := clients.NewFREDClient(cfg.FREDAPIKey, log)
		fetchers = append(fetchers,
			clients.NewPercentSeriesFetcher(fred, catalog.IndicatorVIX, "VIXCLS", false),
			clients.NewPercentSeriesFetcher(fred, catalog.IndicatorHYOAS, "BAMLH0A0HYM2", false),
			clients.NewPercentSeriesFetcher(fred, catalog.IndicatorIGOAS, "BAMLC0A0CM", false),
			clients.NewPercentSeriesFetcher(fred, catalog.IndicatorUnemployment, "UNRATE", false),
			clients.NewPercentSeriesFetcher(fred, catalog.IndicatorNFCI, "NFCI", false),
			clients.NewPercentSeriesFetcher(fred, catalog.IndicatorBreakeven10Y, "T10YIE", false),
			clients.NewYieldCurveFetcher(fred, catalog.IndicatorYieldCurve, "DGS10", "DGS2"),
		)
	}
	if cfg.TwelveDataAPIKey != "" {
		fetchers = append(fetchers, clients.NewTwelveDataFetcher(cfg.TwelveDataAPIKey, "DXY", catalog.IndicatorUSDIndex, log))
	}
	fetchers = append(fetchers, clients.NewCoinGeckoFetcher(cfg.CoinGeckoBase, "bitcoin", catalog.IndicatorBTCReturn, log))

	return fetchers
}

func buildOverridesFetchers(cfg *config.Config, log zerolog.Logger) []scheduler.OverridesFetcher {
	if cfg.AlphaVantageAPIKey == "" {
		return nil
	}
	return []scheduler.OverridesFetcher{
		clients.NewTechnicalSignalClient(cfg.AlphaVantageAPIKey, "BTC", catalog.IndicatorBTCReturn, log),
	}
}

// regimeIndicatorIDs selects the indicator subset the k-means regime
// detector builds features from: the two canonical stress proxies plus the
// other two indicators with the strongest systemic read, as specified.
func regimeIndicatorIDs() []string {
	return []string{
		catalog.IndicatorVIX,
		catalog.IndicatorHYOAS,
		catalog.IndicatorNFCI,
		catalog.IndicatorYieldCurve,
	}
}

func buildBackupJob(cfg *config.Config, db *database.DB, log zerolog.Logger) (*scheduler.BackupJob, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	r2, err := backup.NewR2Client(ctx, cfg.BackupEndpoint, cfg.BackupBucket, cfg.BackupAccessKey, cfg.BackupSecretKey, log)
	if err != nil {
		return nil, fmt.Errorf("build r2 client: %w", err)
	}

	stagingDir := filepath.Join(filepath.Dir(cfg.SQLitePath), "backup-staging")
	svc := backup.New(r2, cfg.SQLitePath, stagingDir, cfg.BackupRetentionDays, log)
	return scheduler.NewBackupJob(svc, db.Conn(), log), nil
}
