package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/epir-jewellery/shop-assistant/backend/internal/retry"
)

func newTestShopify(t *testing.T, handler http.HandlerFunc) (*ShopifyClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewShopifyClient(ShopifyConfig{
		StoreURL:    server.URL + "/",
		APIVersion:  "2024-01",
		AccessToken: "shpat_test",
		PageLimit:   50,
		Retry:       retry.Policy{Attempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		HTTPClient:  server.Client(),
	})
	return client, server
}

func TestShopifyLoadMapsProducts(t *testing.T) {
	client, _ := newTestShopify(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/api/2024-01/products.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("expected limit=50, got %s", got)
		}
		if got := r.Header.Get("X-Shopify-Access-Token"); got != "shpat_test" {
			t.Errorf("missing access token header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"products":[
			{"id":7301,"title":"Gold Ring","body_html":"<p>14k gold</p>"},
			{"id":7302,"title":"Silver Chain","body_html":""}
		]}`))
	})

	products, err := client.Load(context.Background())
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if products[0].ID != "7301" || products[0].Title != "Gold Ring" || products[0].Description != "<p>14k gold</p>" {
		t.Fatalf("unexpected first product %+v", products[0])
	}
	if products[1].Description != "" {
		t.Fatalf("expected empty description, got %q", products[1].Description)
	}
}

func TestShopifyLoadRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestShopify(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"products":[{"id":1,"title":"Pierścionek","body_html":"złoto"}]}`))
	})

	products, err := client.Load(context.Background())
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if len(products) != 1 || calls.Load() != 2 {
		t.Fatalf("expected success on the second attempt, products=%d calls=%d", len(products), calls.Load())
	}
}

func TestShopifyLoadDoesNotRetryAuthErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestShopify(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"errors":"Invalid API key"}`, http.StatusUnauthorized)
	})

	_, err := client.Load(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("401 must not be retried, got %d calls", calls.Load())
	}
}

func TestShopifyLoadRejectsMalformedBody(t *testing.T) {
	client, _ := newTestShopify(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	})

	if _, err := client.Load(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestNewShopifyClientAddsScheme(t *testing.T) {
	client := NewShopifyClient(ShopifyConfig{StoreURL: "epir.myshopify.com", APIVersion: "2024-01", PageLimit: 10})
	want := "https://epir.myshopify.com/admin/api/2024-01/products.json?fields=id%2Ctitle%2Cbody_html&limit=10"
	if client.endpoint != want {
		t.Fatalf("endpoint = %s, want %s", client.endpoint, want)
	}
}
