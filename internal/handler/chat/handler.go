package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/epir-jewellery/shop-assistant/backend/internal/middleware"
	"github.com/epir-jewellery/shop-assistant/backend/internal/model/chat"
	chatservice "github.com/epir-jewellery/shop-assistant/backend/internal/service/chat"
	"github.com/epir-jewellery/shop-assistant/backend/internal/service/session"
	"github.com/epir-jewellery/shop-assistant/backend/pkg/utils"
)

// Customer-facing error messages.
const (
	msgMissingMessage   = "Brak wiadomości w żądaniu"
	msgMissingSessionID = "Brak identyfikatora sesji w żądaniu"
	msgInvalidSessionID = "Nieprawidłowy identyfikator sesji"
	msgInvalidBody      = "Nieprawidłowy format żądania"
	msgServerError      = "Błąd serwera"
)

const maxBodyBytes = 64 << 10

// Replier is the orchestrator seen by the transport layer.
type Replier interface {
	Reply(ctx context.Context, sessionID, message string) (string, error)
	History(ctx context.Context, sessionID string) ([]chat.Message, error)
}

// Handler serves the chatbot over HTTP and websocket.
type Handler struct {
	chatSvc       Replier
	exposeDetails bool
	upgrader      websocket.Upgrader
}

// New builds the handler. exposeDetails adds internal error text to 500 bodies.
// Websocket upgrades are accepted from the same origins as CORS; clients that
// send no Origin header are not browsers and are let through.
func New(chatSvc Replier, exposeDetails bool, allowedOrigins []string) *Handler {
	origins := middleware.NewOrigins(allowedOrigins)
	return &Handler{
		chatSvc:       chatSvc,
		exposeDetails: exposeDetails,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins.Allows(origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the chatbot routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chatbot", h.handleChat)
	r.Get("/chatbot/ws", h.handleWebSocket)
	r.Get("/chatbot/{sessionID}/history", h.handleHistory)
}

// chatRequest keeps fields untyped so a non-string message is reported as missing, not as bad JSON.
type chatRequest struct {
	SessionID any `json:"sessionId"`
	Message   any `json:"message"`
}

func (p chatRequest) fields() (sessionID, message string) {
	sessionID, _ = p.SessionID.(string)
	message, _ = p.Message.(string)
	return sessionID, message
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var payload chatRequest
	// A body-less POST is read as {} and reported as a missing message.
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	sessionID, message := payload.fields()
	reply, err := h.chatSvc.Reply(r.Context(), sessionID, message)
	if err != nil {
		status, text, details := h.describeError(err)
		if status >= http.StatusInternalServerError {
			log.Printf("[chat] reply failed session=%s: %v", sessionID, err)
		}
		utils.RespondErrorDetails(w, status, text, details)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"response": reply})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	history, err := h.chatSvc.History(r.Context(), sessionID)
	if err != nil {
		status, text, details := h.describeError(err)
		utils.RespondErrorDetails(w, status, text, details)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"messages":  history,
	})
}

// describeError maps orchestrator errors to a status, a customer-facing message
// and, when enabled, internal details.
func (h *Handler) describeError(err error) (int, string, any) {
	var fieldErr *chatservice.MissingFieldError
	switch {
	case errors.As(err, &fieldErr):
		if fieldErr.Field == chatservice.FieldSessionID {
			return http.StatusBadRequest, msgMissingSessionID, nil
		}
		return http.StatusBadRequest, msgMissingMessage, nil
	case errors.Is(err, session.ErrInvalidSessionID):
		return http.StatusBadRequest, msgInvalidSessionID, nil
	}

	if h.exposeDetails {
		return http.StatusInternalServerError, msgServerError, err.Error()
	}
	return http.StatusInternalServerError, msgServerError, nil
}
