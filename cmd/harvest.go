package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beautydex/harvester/internal/api"
	"github.com/beautydex/harvester/internal/config"
	"github.com/beautydex/harvester/internal/extract"
	"github.com/beautydex/harvester/internal/fetch"
	"github.com/beautydex/harvester/internal/harvest"
	"github.com/beautydex/harvester/internal/ledger"
	"github.com/beautydex/harvester/internal/logging"
	"github.com/beautydex/harvester/internal/output"
	"github.com/beautydex/harvester/internal/ratelimit"
)

// newHarvestCmd creates the 'run' subcommand that executes one harvest batch.
func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Runs one bounded harvest batch",
		Long: `Fetches the configured category page, discovers new products, enriches
up to the batch caps, and merges the results into the output file.
Interrupting with Ctrl-C persists partial progress.`,
		RunE: runHarvestCommand,
	}
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var ops *api.Server
	if cfg.Metrics.Enabled {
		ops = api.NewServer(cfg.Metrics.Addr, logger)
		ops.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := ops.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Ops server shutdown failed", zap.Error(err))
			}
		}()
	}

	stats, err := pipeline.Run(ctx)
	if ops != nil {
		ops.SetProgress(harvest.RunInfo{SourceURL: cfg.Site.CategoryURL, Stats: stats})
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run harvest: %w", err)
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("Harvest interrupted; progress saved",
			zap.Int("scraped", stats.Scraped),
		)
	}
	return nil
}

// buildPipeline wires every collaborator from the loaded configuration. The
// returned cleanup closes anything holding external resources.
func buildPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) (*harvest.Pipeline, func(), error) {
	cleanup := func() {}

	extractor, err := extract.New(extract.Config{
		BaseURL:             cfg.Site.BaseURL,
		BrandToken:          cfg.Site.BrandToken,
		Brand:               cfg.Site.Brand,
		DefaultCategory:     cfg.Site.DefaultCategory,
		MinStructuralYield:  cfg.Extract.MinStructuralYield,
		Keywords:            cfg.Extract.Keywords,
		ProductPathPatterns: cfg.Extract.ProductPathPatterns,
		CategoryPathToken:   cfg.Site.CategoryPathToken,
	}, logger)
	if err != nil {
		return nil, cleanup, fmt.Errorf("init extractor: %w", err)
	}

	var fetcher harvest.Fetcher
	if cfg.Headless.Enabled {
		headless, err := fetch.NewHeadlessFetcher(fetch.HeadlessConfig{
			Enabled:        true,
			UserAgent:      cfg.Crawler.UserAgent,
			Timeout:        time.Duration(cfg.Headless.TimeoutSeconds) * time.Second,
			MaxConcurrency: cfg.Headless.MaxParallel,
		}, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("init headless fetcher: %w", err)
		}
		cleanup = func() {
			if err := headless.Close(); err != nil {
				logger.Warn("Failed to close headless fetcher", zap.Error(err))
			}
		}
		fetcher = headless
	} else {
		colly, err := fetch.NewCollyFetcher(fetch.Config{
			UserAgent:      cfg.Crawler.UserAgent,
			Referer:        cfg.Crawler.Referer,
			RequestTimeout: cfg.RequestTimeout(),
			Concurrency:    1,
		}, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("init fetcher: %w", err)
		}
		fetcher = colly
	}

	prober := fetch.NewHeadProber(cfg.Crawler.UserAgent, logger)
	images := extract.NewImageResolver(extract.ImageConfig{
		Templates:     cfg.Images.Templates,
		FallbackURL:   cfg.Images.FallbackURL,
		ContextWindow: cfg.Images.ContextWindow,
	}, extractor, prober, logger)

	budget := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.Crawler.RequestsPerSecond,
		Burst:             cfg.Crawler.Burst,
		PenaltyStep:       time.Duration(cfg.Crawler.PenaltyStepSeconds) * time.Second,
		MaxPenalty:        time.Duration(cfg.Crawler.MaxPenaltySeconds) * time.Second,
	}, logger)

	retry := fetch.NewLinearRetryPolicy(
		cfg.Crawler.MaxRetries,
		time.Duration(cfg.Crawler.RetryStepSeconds)*time.Second,
	)

	robots := fetch.NewRobotsEnforcer(fetch.RobotsConfig{
		Respect:                 cfg.Crawler.RespectRobots,
		OverrideGeneralDisallow: cfg.Crawler.OverrideGeneralDisallow,
		UserAgent:               cfg.Crawler.UserAgent,
	}, logger)

	progress, closeLedger, err := buildLedger(ctx, cfg, logger)
	if err != nil {
		return nil, cleanup, err
	}
	prevCleanup := cleanup
	cleanup = func() {
		closeLedger()
		prevCleanup()
	}

	sink := output.NewStore(cfg.Output.Path, logger)

	pipeline := harvest.NewPipeline(
		harvest.Config{
			CategoryURL:     cfg.Site.CategoryURL,
			DefaultCategory: cfg.Site.DefaultCategory,
			Brand:           cfg.Site.Brand,
		},
		fetcher,
		extractor,
		images,
		budget,
		retry,
		robots,
		progress,
		sink,
		harvest.BatchPlanner{
			PerCategoryCap: cfg.Batch.PerCategoryCap,
			GlobalCap:      cfg.Batch.GlobalCap,
		},
		logger,
	)
	return pipeline, cleanup, nil
}

func buildLedger(ctx context.Context, cfg config.Config, logger *zap.Logger) (harvest.Ledger, func(), error) {
	switch cfg.Ledger.Backend {
	case "postgres":
		pg, err := ledger.NewPostgresLedger(ctx, ledger.PostgresConfig{
			DSN:   cfg.Ledger.DSN,
			Table: cfg.Ledger.Table,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres ledger: %w", err)
		}
		return pg, pg.Close, nil
	default:
		return ledger.NewFileLedger(cfg.Ledger.Path, logger), func() {}, nil
	}
}
