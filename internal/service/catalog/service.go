package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/catalog"
)

var (
	// ErrNoSnapshot is returned by RefreshCatalog when the catalog is read live.
	ErrNoSnapshot = errors.New("catalog strategy has no snapshot to refresh")
	// ErrLiveUnavailable is returned by RefreshCatalog when no platform credentials are configured.
	ErrLiveUnavailable = errors.New("live catalog source not configured")
	// ErrSnapshotMissing means a snapshot backend has never been written.
	ErrSnapshotMissing = errors.New("catalog snapshot not found")
)

// Loader reads a full product list.
type Loader interface {
	Load(ctx context.Context) ([]catalog.Product, error)
}

// Snapshot is a materialized copy of the catalog. Save must replace the
// previous snapshot atomically so concurrent Loads see old or new, never partial.
type Snapshot interface {
	Loader
	Save(ctx context.Context, products []catalog.Product) error
}

// Service is the catalog source used by the chat flow.
type Service struct {
	strategy string
	source   Loader
	live     Loader
	snapshot Snapshot
	group    singleflight.Group

	refreshTimeout time.Duration
}

const defaultRefreshTimeout = time.Minute

// NewLiveService reads the commerce platform on every fetch.
func NewLiveService(live Loader) *Service {
	return &Service{strategy: "live", source: live, live: live}
}

// NewSnapshotService reads from snapshot and refreshes it from live. live may be nil,
// in which case refreshing fails with ErrLiveUnavailable.
func NewSnapshotService(strategy string, snapshot Snapshot, live Loader) *Service {
	return &Service{strategy: strategy, source: snapshot, live: live, snapshot: snapshot, refreshTimeout: defaultRefreshTimeout}
}

// SetRefreshTimeout bounds a shared refresh run. Non-positive values keep the default.
func (s *Service) SetRefreshTimeout(d time.Duration) {
	if d > 0 {
		s.refreshTimeout = d
	}
}

// Strategy names the configured backend.
func (s *Service) Strategy() string {
	return s.strategy
}

// FetchCatalog returns the current catalog. Failures are logged and degrade to
// an empty list; callers never see an error.
func (s *Service) FetchCatalog(ctx context.Context) []catalog.Product {
	products, err := s.source.Load(ctx)
	if err != nil {
		log.Printf("[catalog] catalog unavailable (strategy=%s): %v", s.strategy, err)
		return []catalog.Product{}
	}
	if products == nil {
		return []catalog.Product{}
	}
	return products
}

// RefreshCatalog re-reads the platform and overwrites the snapshot, returning
// the number of products written. Concurrent calls share one refresh. The shared
// run is detached from any single caller, so a caller that gives up only stops
// waiting for it.
func (s *Service) RefreshCatalog(ctx context.Context) (int, error) {
	if s.snapshot == nil {
		return 0, ErrNoSnapshot
	}
	if s.live == nil {
		return 0, ErrLiveUnavailable
	}

	ch := s.group.DoChan("refresh", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
		defer cancel()

		started := time.Now()
		products, err := s.live.Load(runCtx)
		if err != nil {
			return 0, fmt.Errorf("fetch live catalog: %w", err)
		}
		if err := s.snapshot.Save(runCtx, products); err != nil {
			return 0, fmt.Errorf("save catalog snapshot: %w", err)
		}
		log.Printf("[catalog] refreshed %s snapshot with %d products in %s", s.strategy, len(products), time.Since(started).Round(time.Millisecond))
		return len(products), nil
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		if res.Shared {
			log.Printf("[catalog] refresh coalesced with an in-flight run")
		}
		return res.Val.(int), nil
	}
}
