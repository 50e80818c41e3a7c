package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/epir-jewellery/shop-assistant/backend/internal/config"
	"github.com/epir-jewellery/shop-assistant/backend/internal/service/ai"
	catalogservice "github.com/epir-jewellery/shop-assistant/backend/internal/service/catalog"
	"github.com/epir-jewellery/shop-assistant/backend/internal/service/chat"
	"github.com/epir-jewellery/shop-assistant/backend/internal/service/prompt"
	"github.com/epir-jewellery/shop-assistant/backend/internal/service/session"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] could not load .env, using system environment: %v", err)
	}

	mode := flag.String("mode", "", "refresh | print | prompt | ask")
	message := flag.String("message", "", "customer message for -mode=ask")
	sessionID := flag.String("session", "", "session id for -mode=ask, generated when empty")
	timeout := flag.Duration("timeout", 60*time.Second, "overall timeout")
	flag.Parse()

	switch *mode {
	case "refresh", "print", "prompt", "ask":
	default:
		flag.Usage()
		log.Fatal("choose a mode with -mode=refresh, -mode=print, -mode=prompt or -mode=ask")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	catalogSvc, closeCatalog, err := catalogservice.NewFromConfig(ctx, cfg.Catalog)
	if err != nil {
		log.Fatalf("failed to initialize catalog (strategy=%s): %v", cfg.Catalog.Strategy, err)
	}
	defer closeCatalog()

	switch *mode {
	case "refresh":
		runRefresh(ctx, catalogSvc)
	case "print":
		runPrint(ctx, catalogSvc)
	case "prompt":
		fmt.Println(prompt.BuildSystemPrompt(catalogSvc.FetchCatalog(ctx), cfg.AI.Role, ""))
	case "ask":
		runAsk(ctx, cfg, catalogSvc, *sessionID, *message)
	}
}

func runRefresh(ctx context.Context, catalogSvc *catalogservice.Service) {
	started := time.Now()
	count, err := catalogSvc.RefreshCatalog(ctx)
	if err != nil {
		log.Fatalf("refresh failed (strategy=%s): %v", catalogSvc.Strategy(), err)
	}
	log.Printf("snapshot refreshed: strategy=%s products=%d took=%s", catalogSvc.Strategy(), count, time.Since(started).Round(time.Millisecond))
}

func runPrint(ctx context.Context, catalogSvc *catalogservice.Service) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(catalogSvc.FetchCatalog(ctx)); err != nil {
		log.Fatalf("failed to print catalog: %v", err)
	}
}

func runAsk(ctx context.Context, cfg *config.Config, catalogSvc *catalogservice.Service, sessionID, message string) {
	if message == "" {
		log.Fatal("-mode=ask requires -message")
	}
	if sessionID == "" {
		sessionID = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}

	provider, err := ai.NewProvider(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("failed to initialize AI provider %s: %v", cfg.AI.Provider, err)
	}

	store := session.NewMemoryStore(session.Options{MaxMessages: cfg.Session.MaxMessages})
	chatSvc := chat.NewService(catalogSvc, store, provider, chat.WithRole(cfg.AI.Role))

	started := time.Now()
	reply, err := chatSvc.Reply(ctx, sessionID, message)
	if err != nil {
		stage, _ := chat.FailedStage(err)
		log.Fatalf("reply failed after stage %s: %v", stage, err)
	}
	log.Printf("provider=%s session=%s took=%s", provider.Name(), sessionID, time.Since(started).Round(time.Millisecond))
	fmt.Println(reply)
}
