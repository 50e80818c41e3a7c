package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/catalog"
)

type stubLoader struct {
	products []catalog.Product
	err      error
	delay    time.Duration
	calls    atomic.Int32
}

func (s *stubLoader) Load(ctx context.Context) ([]catalog.Product, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return catalog.Clone(s.products), nil
}

func TestFetchCatalogLive(t *testing.T) {
	live := &stubLoader{products: sampleProducts}
	service := NewLiveService(live)

	assertProducts(t, service.FetchCatalog(context.Background()))
	if service.Strategy() != "live" {
		t.Fatalf("unexpected strategy %s", service.Strategy())
	}
}

func TestFetchCatalogDegradesToEmpty(t *testing.T) {
	service := NewLiveService(&stubLoader{err: errors.New("connection refused")})

	products := service.FetchCatalog(context.Background())
	if products == nil || len(products) != 0 {
		t.Fatalf("expected empty non-nil catalog, got %#v", products)
	}
}

func TestFetchCatalogMissingSnapshotIsEmpty(t *testing.T) {
	snapshot := NewFileSnapshot(filepath.Join(t.TempDir(), "products.json"))
	service := NewSnapshotService("file", snapshot, nil)

	if products := service.FetchCatalog(context.Background()); len(products) != 0 {
		t.Fatalf("expected empty catalog before first refresh, got %d", len(products))
	}
}

func TestRefreshThenFetch(t *testing.T) {
	live := &stubLoader{products: sampleProducts}
	snapshot := NewFileSnapshot(filepath.Join(t.TempDir(), "products.json"))
	service := NewSnapshotService("file", snapshot, live)
	ctx := context.Background()

	count, err := service.RefreshCatalog(ctx)
	if err != nil {
		t.Fatalf("RefreshCatalog err: %v", err)
	}
	if count != len(sampleProducts) {
		t.Fatalf("expected count %d, got %d", len(sampleProducts), count)
	}

	assertProducts(t, service.FetchCatalog(ctx))
	if live.calls.Load() != 1 {
		t.Fatalf("fetch from snapshot must not hit the platform, calls=%d", live.calls.Load())
	}
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	live := &stubLoader{products: sampleProducts}
	snapshot := NewFileSnapshot(filepath.Join(t.TempDir(), "products.json"))
	service := NewSnapshotService("file", snapshot, live)
	ctx := context.Background()

	if _, err := service.RefreshCatalog(ctx); err != nil {
		t.Fatalf("RefreshCatalog err: %v", err)
	}

	live.err = errors.New("shopify returned status=503")
	if _, err := service.RefreshCatalog(ctx); err == nil {
		t.Fatal("expected refresh error")
	}
	assertProducts(t, service.FetchCatalog(ctx))
}

func TestRefreshLiveHasNoSnapshot(t *testing.T) {
	service := NewLiveService(&stubLoader{products: sampleProducts})

	if _, err := service.RefreshCatalog(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestRefreshWithoutPlatformCredentials(t *testing.T) {
	snapshot := NewFileSnapshot(filepath.Join(t.TempDir(), "products.json"))
	service := NewSnapshotService("file", snapshot, nil)

	if _, err := service.RefreshCatalog(context.Background()); !errors.Is(err, ErrLiveUnavailable) {
		t.Fatalf("expected ErrLiveUnavailable, got %v", err)
	}
}

func TestConcurrentRefreshesAreCoalesced(t *testing.T) {
	live := &stubLoader{products: sampleProducts, delay: 50 * time.Millisecond}
	snapshot, _ := newRedisSnapshot(t)
	service := NewSnapshotService("cached", snapshot, live)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.RefreshCatalog(context.Background()); err != nil {
				t.Errorf("RefreshCatalog err: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls := live.calls.Load(); calls >= 5 {
		t.Fatalf("expected concurrent refreshes to share platform calls, got %d", calls)
	}
	assertProducts(t, service.FetchCatalog(context.Background()))
}

func TestRefreshSurvivesFirstCallerCancel(t *testing.T) {
	live := &stubLoader{products: sampleProducts, delay: 200 * time.Millisecond}
	snapshot, _ := newRedisSnapshot(t)
	service := NewSnapshotService("cached", snapshot, live)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := service.RefreshCatalog(firstCtx)
		firstErr <- err
	}()

	deadline := time.Now().Add(time.Second)
	for live.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("refresh never reached the live source")
		}
		time.Sleep(5 * time.Millisecond)
	}

	type result struct {
		count int
		err   error
	}
	second := make(chan result, 1)
	go func() {
		count, err := service.RefreshCatalog(context.Background())
		second <- result{count, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancelFirst()

	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller should see its own cancellation, got %v", err)
	}
	res := <-second
	if res.err != nil {
		t.Fatalf("second caller failed after first cancelled: %v", res.err)
	}
	if res.count != len(sampleProducts) {
		t.Fatalf("expected %d products, got %d", len(sampleProducts), res.count)
	}
	if calls := live.calls.Load(); calls != 1 {
		t.Fatalf("expected one shared platform call, got %d", calls)
	}
	assertProducts(t, service.FetchCatalog(context.Background()))
}

func TestRefreshHonoursRefreshTimeout(t *testing.T) {
	live := &stubLoader{products: sampleProducts, delay: time.Second}
	snapshot := NewFileSnapshot(filepath.Join(t.TempDir(), "products.json"))
	service := NewSnapshotService("file", snapshot, live)
	service.SetRefreshTimeout(30 * time.Millisecond)

	_, err := service.RefreshCatalog(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected refresh deadline, got %v", err)
	}
}
