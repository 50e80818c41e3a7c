package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/epir-jewellery/shop-assistant/backend/internal/config"
	"github.com/epir-jewellery/shop-assistant/backend/internal/handler"
	"github.com/epir-jewellery/shop-assistant/backend/internal/middleware"
	"github.com/epir-jewellery/shop-assistant/backend/internal/retry"
	"github.com/epir-jewellery/shop-assistant/backend/internal/service/ai"
	catalogservice "github.com/epir-jewellery/shop-assistant/backend/internal/service/catalog"
	"github.com/epir-jewellery/shop-assistant/backend/internal/service/chat"
	"github.com/epir-jewellery/shop-assistant/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	catalogSvc, closeCatalog, err := catalogservice.NewFromConfig(ctx, cfg.Catalog)
	if err != nil {
		log.Fatalf("failed to initialize catalog (strategy=%s): %v", cfg.Catalog.Strategy, err)
	}
	defer func() {
		if err := closeCatalog(); err != nil {
			log.Printf("warning: failed to close catalog backend: %v", err)
		}
	}()
	warmCatalog(ctx, cfg.Catalog, catalogSvc)

	store := session.NewMemoryStore(session.Options{
		MaxMessages: cfg.Session.MaxMessages,
		IdleTTL:     cfg.Session.IdleTTL,
	})
	go store.RunJanitor(ctx, cfg.Session.SweepInterval)

	provider, err := ai.NewProvider(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("failed to initialize AI provider %s: %v", cfg.AI.Provider, err)
	}
	if cfg.AI.RetryAttempts > 1 {
		provider = ai.WithRetry(provider, retry.Policy{
			Attempts:  cfg.AI.RetryAttempts,
			BaseDelay: 500 * time.Millisecond,
			MaxDelay:  4 * time.Second,
		})
		log.Printf("AI provider retries enabled: %d attempts", cfg.AI.RetryAttempts)
	}
	log.Printf("AI provider %s initialized (model=%s)", provider.Name(), cfg.AI.Model)

	opts := []chat.Option{chat.WithRole(cfg.AI.Role)}
	if cfg.AI.MaxPromptTokens > 0 {
		counter, err := ai.NewTiktokenCounter()
		if err != nil {
			log.Printf("warning: prompt token budget disabled: %v", err)
		} else {
			opts = append(opts, chat.WithTokenBudget(counter, cfg.AI.MaxPromptTokens))
		}
	}
	chatSvc := chat.NewService(catalogSvc, store, provider, opts...)

	limiter, closeLimiter := middleware.NewLimiterFromConfig(ctx, cfg.Server)
	defer func() {
		if err := closeLimiter(); err != nil {
			log.Printf("warning: failed to close rate limit backend: %v", err)
		}
	}()

	router := handler.NewRouter(cfg.Server, chatSvc, catalogSvc, limiter)

	startServer(ctx, cfg.Server, router)
}

// warmCatalog fills an empty snapshot on first start when the platform is reachable.
func warmCatalog(ctx context.Context, cfg config.CatalogConfig, catalogSvc *catalogservice.Service) {
	if cfg.Strategy == config.CatalogLive || !cfg.LiveEnabled() {
		return
	}
	if len(catalogSvc.FetchCatalog(ctx)) > 0 {
		return
	}

	count, err := catalogSvc.RefreshCatalog(ctx)
	if err != nil {
		log.Printf("warning: initial catalog refresh failed: %v", err)
		return
	}
	log.Printf("initial catalog snapshot written with %d products", count)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("EPIR shop assistant listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
