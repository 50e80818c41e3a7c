package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/catalog"
	"github.com/epir-jewellery/shop-assistant/backend/internal/model/chat"
	"github.com/epir-jewellery/shop-assistant/backend/internal/service/ai"
	chatservice "github.com/epir-jewellery/shop-assistant/backend/internal/service/chat"
	"github.com/epir-jewellery/shop-assistant/backend/internal/service/session"
)

type staticCatalog []catalog.Product

func (c staticCatalog) FetchCatalog(context.Context) []catalog.Product { return catalog.Clone(c) }

type echoProvider struct{ err error }

func (p echoProvider) Name() string { return "echo" }

func (p echoProvider) GenerateReply(_ context.Context, _ string, _ []chat.Message, userMessage string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "echo: " + userMessage, nil
}

func setupRouter(provider ai.Provider, exposeDetails bool) (*chi.Mux, *session.MemoryStore) {
	return setupRouterWithOrigins(provider, exposeDetails, nil)
}

func setupRouterWithOrigins(provider ai.Provider, exposeDetails bool, origins []string) (*chi.Mux, *session.MemoryStore) {
	store := session.NewMemoryStore(session.Options{})
	svc := chatservice.NewService(staticCatalog{{Title: "Gold Ring", Description: "14k"}}, store, provider)
	handler := New(svc, exposeDetails, origins)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, store
}

func postChat(t *testing.T, r http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chatbot", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var decoded map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body.String(), err)
	}
	return resp, decoded
}

func TestChatConversation(t *testing.T) {
	r, store := setupRouter(echoProvider{}, false)

	resp, body := postChat(t, r, `{"sessionId":"s1","message":"Show me gold rings"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body["response"] != "echo: Show me gold rings" {
		t.Fatalf("unexpected body %v", body)
	}

	resp, _ = postChat(t, r, `{"sessionId":"s1","message":"and cheaper?"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	history, _ := store.History(context.Background(), "s1")
	if len(history) != 4 {
		t.Fatalf("expected 4 stored messages, got %d", len(history))
	}
}

func TestChatValidationErrors(t *testing.T) {
	cases := []struct {
		name, body, want string
	}{
		{"missing message", `{"sessionId":"s1"}`, msgMissingMessage},
		{"empty message", `{"sessionId":"s1","message":""}`, msgMissingMessage},
		{"non-string message", `{"sessionId":"s1","message":42}`, msgMissingMessage},
		{"missing session", `{"message":"hej"}`, msgMissingSessionID},
		{"invalid session", `{"sessionId":"` + strings.Repeat("x", 300) + `","message":"hej"}`, msgInvalidSessionID},
		{"empty body", ``, msgMissingMessage},
		{"malformed json", `{"sessionId":`, msgInvalidBody},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, store := setupRouter(echoProvider{}, false)
			resp, body := postChat(t, r, tc.body)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.Code)
			}
			if body["error"] != tc.want {
				t.Fatalf("error = %v, want %q", body["error"], tc.want)
			}
			if store.Len() != 0 {
				t.Fatal("rejected requests must not create sessions")
			}
		})
	}
}

func TestChatProviderFailure(t *testing.T) {
	providerErr := &ai.ProviderError{Provider: "echo", StatusCode: http.StatusUnauthorized}

	r, store := setupRouter(echoProvider{err: providerErr}, false)
	resp, body := postChat(t, r, `{"sessionId":"s1","message":"Show me gold rings"}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if body["error"] != msgServerError {
		t.Fatalf("unexpected error %v", body["error"])
	}
	if _, ok := body["details"]; ok {
		t.Fatal("details must be hidden unless enabled")
	}
	if history, _ := store.History(context.Background(), "s1"); len(history) != 1 {
		t.Fatalf("user turn should be kept, got %d messages", len(history))
	}

	r, _ = setupRouter(echoProvider{err: providerErr}, true)
	_, body = postChat(t, r, `{"sessionId":"s1","message":"Show me gold rings"}`)
	details, _ := body["details"].(string)
	if !strings.Contains(details, "status 401") {
		t.Fatalf("expected internal details, got %v", body)
	}
}

func TestChatHistory(t *testing.T) {
	r, _ := setupRouter(echoProvider{}, false)
	postChat(t, r, `{"sessionId":"s1","message":"Show me gold rings"}`)

	req := httptest.NewRequest(http.MethodGet, "/chatbot/s1/history", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		SessionID string         `json:"sessionId"`
		Messages  []chat.Message `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.SessionID != "s1" || len(body.Messages) != 2 {
		t.Fatalf("unexpected history %+v", body)
	}
	if body.Messages[0].Role != chat.RoleUser || body.Messages[1].Content != "echo: Show me gold rings" {
		t.Fatalf("unexpected messages %+v", body.Messages)
	}
}

func TestChatHistoryUnknownSessionIsEmpty(t *testing.T) {
	r, store := setupRouter(echoProvider{}, false)

	req := httptest.NewRequest(http.MethodGet, "/chatbot/never-seen/history", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Messages []chat.Message `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Messages == nil || len(body.Messages) != 0 {
		t.Fatalf("expected empty message list, got %s", resp.Body.String())
	}
	if store.Len() != 0 {
		t.Fatalf("reading history must not create sessions, got %d", store.Len())
	}
}
