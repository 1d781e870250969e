package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
)

// Handler manages sale HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales", h.create)
	r.Get("/sales/{id}", h.show)
	r.Get("/sales/{id}/receipt", h.receipt)
	r.Post("/sales/{id}/void", h.void)
	r.Get("/sales/held", h.listHeld)
	r.Post("/sales/held/{id}/resume", h.resume)
	r.Delete("/sales/held/{id}", h.release)
}

type saleItemRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	BatchID   int64   `json:"batch_id,omitempty"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

type salePaymentRequest struct {
	Type         string  `json:"type" validate:"required"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	CardLastFour string  `json:"card_last_four,omitempty" validate:"omitempty,len=4"`
}

type createSaleRequest struct {
	CashierID      int64                `json:"cashier_id" validate:"required,gt=0"`
	CustomerID     int64                `json:"customer_id,omitempty"`
	Items          []saleItemRequest    `json:"items" validate:"required,min=1,dive"`
	Payments       []salePaymentRequest `json:"payments" validate:"dive"`
	DiscountType   string               `json:"discount_type,omitempty" validate:"omitempty,oneof=percent amount"`
	DiscountValue  float64              `json:"discount_value,omitempty" validate:"gte=0"`
	Hold           bool                 `json:"hold"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateSaleInput{
		CashierID:      req.CashierID,
		CustomerID:     req.CustomerID,
		DiscountType:   DiscountType(req.DiscountType),
		DiscountValue:  req.DiscountValue,
		Hold:           req.Hold,
		IdempotencyKey: req.IdempotencyKey,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, SaleItemInput{
			ProductID: item.ProductID,
			BatchID:   item.BatchID,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
		})
	}
	for _, p := range req.Payments {
		input.Payments = append(input.Payments, SalePaymentInput{
			Type:         TenderType(p.Type),
			Amount:       p.Amount,
			CardLastFour: p.CardLastFour,
		})
	}
	sale, err := h.service.CreateSale(r.Context(), input)
	if err != nil {
		h.logger.Error("create sale", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	sale, items, payments, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sale": sale, "items": items, "payments": payments})
}

func (h *Handler) receipt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	text, err := h.service.Receipt(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	if err := h.service.VoidSale(r.Context(), id, actorID); err != nil {
		h.logger.Error("void sale", slog.Any("error", err), slog.Int64("sale_id", id))
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listHeld(w http.ResponseWriter, r *http.Request) {
	cashierID, _ := strconv.ParseInt(r.URL.Query().Get("cashier_id"), 10, 64)
	sales, err := h.service.ListHeldSales(r.Context(), cashierID)
	if err != nil {
		h.logger.Error("list held sales", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	cashierID, _ := strconv.ParseInt(r.URL.Query().Get("cashier_id"), 10, 64)
	sale, items, err := h.service.ResumeHeldSale(r.Context(), id, cashierID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sale": sale, "items": items})
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	cashierID, _ := strconv.ParseInt(r.URL.Query().Get("cashier_id"), 10, 64)
	if err := h.service.ReleaseHeldSale(r.Context(), id, cashierID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrAlreadyVoided), errors.Is(err, ErrHeldSale), errors.Is(err, ErrNotHeld):
		httpx.RespondError(w, httpx.ErrInvalidState)
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
