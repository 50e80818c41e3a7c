package catalog

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/epir-jewellery/shop-assistant/backend/internal/config"
	"github.com/epir-jewellery/shop-assistant/backend/internal/retry"
)

// NewFromConfig wires the configured strategy. The returned close func releases
// any connection the backend opened and is never nil.
func NewFromConfig(ctx context.Context, cfg config.CatalogConfig) (*Service, func() error, error) {
	noop := func() error { return nil }

	var live Loader
	if cfg.LiveEnabled() {
		live = NewShopifyClient(ShopifyConfig{
			StoreURL:    cfg.StoreURL,
			APIVersion:  cfg.APIVersion,
			AccessToken: cfg.AccessToken,
			PageLimit:   cfg.PageLimit,
			Timeout:     cfg.FetchTimeout,
			Retry: retry.Policy{
				Attempts:  cfg.FetchAttempts,
				BaseDelay: 200 * time.Millisecond,
				MaxDelay:  2 * time.Second,
			},
		})
	}

	withSnapshot := func(snapshot Snapshot) *Service {
		svc := withSnapshot(snapshot)
		svc.SetRefreshTimeout(cfg.RefreshTimeout)
		return svc
	}

	switch cfg.Strategy {
	case config.CatalogLive:
		if live == nil {
			return nil, noop, ErrLiveUnavailable
		}
		return NewLiveService(live), noop, nil

	case config.CatalogFile:
		log.Printf("[catalog] using file snapshot %s", cfg.SnapshotPath)
		return withSnapshot(NewFileSnapshot(cfg.SnapshotPath)), noop, nil

	case config.CatalogCached:
		client, err := cfg.NewRedisClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("catalog redis: %w", err)
		}
		log.Printf("[catalog] using redis snapshot key %s", cfg.RedisKey)
		return withSnapshot(NewRedisSnapshot(client, cfg.RedisKey)), client.Close, nil

	case config.CatalogSQL:
		db, err := cfg.OpenDB()
		if err != nil {
			return nil, noop, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, noop, fmt.Errorf("catalog database handle: %w", err)
		}
		snapshot, err := NewSQLSnapshot(db)
		if err != nil {
			_ = sqlDB.Close()
			return nil, noop, err
		}
		log.Printf("[catalog] using %s snapshot table", cfg.SQLDriver)
		return withSnapshot(snapshot), sqlDB.Close, nil
	}

	return nil, noop, fmt.Errorf("unsupported catalog strategy %q", cfg.Strategy)
}
