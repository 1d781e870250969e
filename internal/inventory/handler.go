package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
)

// Handler manages batch ledger HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products/{id}/price-variants", h.priceVariants)
	r.Get("/batches/{id}", h.getBatch)
	r.Put("/batches/{id}/prices", h.updatePrices)
	r.Delete("/batches/{id}", h.deactivate)
}

type updateBatchPricesRequest struct {
	SellingPrice   float64 `json:"selling_price" validate:"required,gt=0"`
	WholesalePrice float64 `json:"wholesale_price" validate:"required,gt=0"`
	ActorID        int64   `json:"actor_id" validate:"required,gt=0"`
}

func (h *Handler) priceVariants(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	variants, err := h.service.PriceVariants(r.Context(), productID)
	if err != nil {
		h.logger.Error("price variants", slog.Any("error", err), slog.Int64("product_id", productID))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"variants": variants})
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batch id")
		return
	}
	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) updatePrices(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batch id")
		return
	}
	var req updateBatchPricesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	batch, err := h.service.UpdateBatchPrices(r.Context(), UpdateBatchPricesInput{
		BatchID:        id,
		SellingPrice:   req.SellingPrice,
		WholesalePrice: req.WholesalePrice,
		ActorID:        req.ActorID,
	})
	if err != nil {
		h.logger.Error("update batch prices", slog.Any("error", err), slog.Int64("batch_id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batch id")
		return
	}
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	if err := h.service.DeactivateBatch(r.Context(), id, actorID); err != nil {
		h.logger.Error("deactivate batch", slog.Any("error", err), slog.Int64("batch_id", id))
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBatchNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrBatchInactive):
		httpx.RespondError(w, httpx.ErrInvalidState)
	case errors.Is(err, ErrInvalidPrice), errors.Is(err, ErrValidation):
		httpx.RespondError(w, httpx.ErrValidation)
	default:
		httpx.RespondError(w, err)
	}
}
