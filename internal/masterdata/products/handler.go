package products

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/lookup", h.lookup)
	r.Get("/products/{id}", h.show)
	r.Post("/products", h.create)
	r.Put("/products/{id}", h.update)
	r.Delete("/products/{id}", h.deactivate)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	categoryID, _ := strconv.ParseInt(r.URL.Query().Get("category_id"), 10, 64)
	req := ListProductsRequest{
		CategoryID: categoryID,
		Search:     r.URL.Query().Get("search"),
		Limit:      limit,
		Offset:     offset,
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		active := v == "true"
		req.IsActive = &active
	}
	if v := r.URL.Query().Get("low_stock"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			req.LowStock = &threshold
		}
	}
	items, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	perPage := req.Limit
	if perPage <= 0 {
		perPage = 50
	}
	page := req.Offset/perPage + 1
	httpx.JSON(w, http.StatusOK, map[string]any{
		"products":   items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.Lookup(r.Context(), r.URL.Query().Get("barcode"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logger.Error("create product", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	var req UpdateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.logger.Error("update product", slog.Any("error", err), slog.Int64("product_id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrDuplicateBarcode):
		httpx.RespondError(w, httpx.ErrDuplicate)
	default:
		httpx.RespondError(w, err)
	}
}
