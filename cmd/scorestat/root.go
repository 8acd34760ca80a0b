package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/okian/scorestat/internal/adapters/cache"
	"github.com/okian/scorestat/internal/adapters/repository"
	service "github.com/okian/scorestat/internal/app"
	"github.com/okian/scorestat/internal/config"
	"github.com/okian/scorestat/pkg/logger"
)

// cli carries state shared by every subcommand.
type cli struct {
	envFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "scorestat",
		Short:         "Exam score statistics service",
		Long:          `scorestat imports national exam scores and serves score-level reports and Group A rankings.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	root.AddCommand(newServeCmd(c))
	root.AddCommand(newImportCmd(c))
	root.AddCommand(newReportCmd(c))
	root.AddCommand(newTopCmd(c))
	root.AddCommand(newGenerateCmd(c))
	return root
}

// setup loads the dotenv file, configuration and logger.
func (c *cli) setup(ctx context.Context) error {
	if c.envFile != "" {
		// Variables already present in the environment win over the file.
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", c.envFile, err)
		}
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	c.cfg = cfg

	if err := logger.InitWith(os.Stderr, cfg.LogFormat); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

// openStore builds the repository selected by db_driver.
func openStore(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	if cfg.DBDriver == config.DriverMemory {
		return repository.NewMemoryStore(), nil
	}
	db, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	store, err := repository.NewSQLStore(db, cfg.DBDriver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// openCache builds the ranking cache selected by cache_driver. The returned
// close function is never nil.
func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	switch cfg.CacheDriver {
	case config.CacheNone:
		return cache.Nop{}, func() {}, nil
	case config.CacheRedis:
		r, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "scorestat:",
		})
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return cache.NewMemory(), func() {}, nil
	}
}

// startService wires the configured store and cache into a started service.
// The returned stop function releases everything.
func (c *cli) startService(ctx context.Context, opts ...service.Option) (*service.Service, func(), error) {
	store, err := openStore(ctx, c.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	ch, closeCache, err := openCache(ctx, c.cfg)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}

	base := []service.Option{
		service.WithLogger(logger.Get()),
		service.WithRepository(store),
		service.WithCache(ch),
		service.WithCacheTTL(c.cfg.CacheTTL()),
		service.WithAggregationStrategy(c.cfg.AggregationStrategy),
		service.WithRankingStrategy(c.cfg.RankingStrategy),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(ctx); err != nil {
		closeCache()
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to start service: %w", err)
	}
	return svc, func() {
		svc.Stop()
		closeCache()
	}, nil
}
