package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/catalog"
	"github.com/epir-jewellery/shop-assistant/backend/internal/retry"
)

// ShopifyConfig configures the live product-listing client.
type ShopifyConfig struct {
	StoreURL    string
	APIVersion  string
	AccessToken string
	PageLimit   int
	Timeout     time.Duration
	Retry       retry.Policy
	HTTPClient  *http.Client
}

// ShopifyClient reads the first page of products from the Shopify Admin REST API.
type ShopifyClient struct {
	endpoint   string
	token      string
	retry      retry.Policy
	httpClient *http.Client
}

// StatusError is a non-2xx answer from the platform.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("shopify returned status=%d body=%s", e.StatusCode, e.Body)
}

// NewShopifyClient builds the products.json endpoint once.
func NewShopifyClient(cfg ShopifyConfig) *ShopifyClient {
	base := strings.TrimRight(cfg.StoreURL, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	limit := cfg.PageLimit
	if limit <= 0 {
		limit = 50
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("fields", "id,title,body_html")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	policy := cfg.Retry
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy()
	}

	return &ShopifyClient{
		endpoint:   fmt.Sprintf("%s/admin/api/%s/products.json?%s", base, cfg.APIVersion, query.Encode()),
		token:      cfg.AccessToken,
		retry:      policy,
		httpClient: httpClient,
	}
}

type shopifyProduct struct {
	ID       json.Number `json:"id"`
	Title    string      `json:"title"`
	BodyHTML string      `json:"body_html"`
}

type shopifyProductsResponse struct {
	Products []shopifyProduct `json:"products"`
}

// Load fetches products, retrying transport errors, 429 and 5xx answers.
func (c *ShopifyClient) Load(ctx context.Context) ([]catalog.Product, error) {
	var products []catalog.Product
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		fetched, err := c.fetch(ctx)
		if err != nil {
			return err
		}
		products = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (c *ShopifyClient) fetch(ctx context.Context) ([]catalog.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create shopify request: %w", err))
	}
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, retry.Permanent(err)
		}
		return nil, fmt.Errorf("shopify request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read shopify response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 300)}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, retry.Permanent(statusErr)
	}

	var parsed shopifyProductsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode shopify products: %w", err))
	}

	products := make([]catalog.Product, 0, len(parsed.Products))
	for _, p := range parsed.Products {
		products = append(products, catalog.Product{
			ID:          p.ID.String(),
			Title:       p.Title,
			Description: p.BodyHTML,
		})
	}
	return products, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
