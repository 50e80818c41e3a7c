package catalog

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/catalog"
	catalogservice "github.com/epir-jewellery/shop-assistant/backend/internal/service/catalog"
	"github.com/epir-jewellery/shop-assistant/backend/pkg/utils"
)

const (
	msgUpdated         = "Lista produktów została zaktualizowana"
	msgLiveNoSnapshot  = "Katalog jest pobierany na żywo, nie ma czego aktualizować"
	msgLiveUnavailable = "Brak konfiguracji sklepu, nie można pobrać produktów"
	msgUpdateFailed    = "Nie udało się zaktualizować listy produktów"
)

// Source is the catalog service seen by the HTTP layer.
type Source interface {
	FetchCatalog(ctx context.Context) []catalog.Product
	RefreshCatalog(ctx context.Context) (int, error)
	Strategy() string
}

// Handler exposes the catalog and its refresh operation.
type Handler struct {
	catalog       Source
	exposeDetails bool
}

func New(source Source, exposeDetails bool) *Handler {
	return &Handler{catalog: source, exposeDetails: exposeDetails}
}

// RegisterRoutes mounts the catalog routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/products", h.handleListProducts)
	r.Get("/update-products", h.handleUpdateProducts)
	r.Post("/update-products", h.handleUpdateProducts)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.catalog.FetchCatalog(r.Context()))
}

func (h *Handler) handleUpdateProducts(w http.ResponseWriter, r *http.Request) {
	count, err := h.catalog.RefreshCatalog(r.Context())
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, map[string]any{"message": msgUpdated, "count": count})
	case errors.Is(err, catalogservice.ErrNoSnapshot):
		utils.RespondError(w, http.StatusConflict, msgLiveNoSnapshot)
	case errors.Is(err, catalogservice.ErrLiveUnavailable):
		utils.RespondError(w, http.StatusServiceUnavailable, msgLiveUnavailable)
	default:
		log.Printf("[catalog] refresh failed (strategy=%s): %v", h.catalog.Strategy(), err)
		var details any
		if h.exposeDetails {
			details = err.Error()
		}
		utils.RespondErrorDetails(w, http.StatusInternalServerError, msgUpdateFailed, details)
	}
}
