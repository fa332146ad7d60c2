package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alphabot-ai/commons/internal/config"
	"github.com/alphabot-ai/commons/internal/forum"
	"github.com/alphabot-ai/commons/internal/observability"
	"github.com/alphabot-ai/commons/internal/rate"
	"github.com/alphabot-ai/commons/internal/store"
	"github.com/alphabot-ai/commons/internal/store/redis"
	"github.com/alphabot-ai/commons/internal/store/sqlite"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "commons",
	Short: "A small community forum",
	Long: `Commons is a single-session community forum. Run it as an HTTP server
with "commons serve" or drive it directly from a terminal with "commons shell".
Settings come from COMMONS_* environment variables or commons.yaml.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (default ./commons.yaml when present)")
}

// backend is an opened forum together with the resources behind it.
type backend struct {
	cfg     config.Config
	state   *forum.State
	limiter rate.Limiter
	store   store.Store
}

func (b *backend) Close() error {
	return b.store.Close()
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, rate.Limiter, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemory(), rate.NewMemory(), nil
	case config.StoreRedis:
		st, err := redis.Open(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return st, rate.NewRedis(st.Client(), cfg.RedisPrefix), nil
	default:
		st, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		return st, rate.NewMemory(), nil
	}
}

// openBackend loads configuration and restores the forum from the configured
// store. With a nil logWriter the logger discards.
func openBackend(ctx context.Context, logWriter io.Writer) (*backend, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger := observability.Discard()
	if logWriter != nil {
		logger, err = observability.NewLogger(logWriter, cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return nil, nil, err
		}
	}

	st, limiter, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	state, err := forum.New(ctx, st,
		forum.WithLogger(logger),
		forum.WithAdmin(cfg.AdminUser, cfg.AdminPassword),
	)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("load forum: %w", err)
	}
	logger.Info("forum loaded", "store", cfg.Store)
	return &backend{cfg: cfg, state: state, limiter: limiter, store: st}, logger, nil
}
