package procurement

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
)

// Handler manages goods receipt HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/grns", h.list)
	r.Get("/grns/{id}", h.show)
	r.Post("/grns", h.create)
	r.Post("/grns/{id}/payments", h.addPayment)
	r.Post("/grns/{id}/reconcile", h.reconcile)
}

type grnItemRequest struct {
	ProductID      int64   `json:"product_id" validate:"required,gt=0"`
	Qty            float64 `json:"qty" validate:"required,gt=0"`
	CostPrice      float64 `json:"cost_price" validate:"gte=0"`
	ProductPrice   float64 `json:"product_price" validate:"gte=0"`
	SellingPrice   float64 `json:"selling_price" validate:"gte=0"`
	WholesalePrice float64 `json:"wholesale_price" validate:"gte=0"`
	ManufacturedAt string  `json:"manufactured_at,omitempty"`
	ExpiresAt      string  `json:"expires_at,omitempty"`
}

type createGRNRequest struct {
	SupplierID   int64            `json:"supplier_id" validate:"required,gt=0"`
	ReceivedBy   int64            `json:"received_by" validate:"required,gt=0"`
	Notes        string           `json:"notes"`
	Items        []grnItemRequest `json:"items" validate:"required,min=1,dive"`
	PaidAmount   float64          `json:"paid_amount" validate:"gte=0"`
	PaymentType  string           `json:"payment_type,omitempty"`
	ChequeNumber string           `json:"cheque_number,omitempty"`
	ChequeDate   string           `json:"cheque_date,omitempty"`
	PaymentDate  string           `json:"payment_date,omitempty"`
}

type addPaymentRequest struct {
	Type         string  `json:"type" validate:"required"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	ChequeNumber string  `json:"cheque_number,omitempty"`
	ChequeDate   string  `json:"cheque_date,omitempty"`
	Notes        string  `json:"notes"`
	RecordedBy   int64   `json:"recorded_by" validate:"required,gt=0"`
	PaidAt       string  `json:"paid_at,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	supplierID, _ := strconv.ParseInt(r.URL.Query().Get("supplier_id"), 10, 64)
	filter := ListFilter{
		SupplierID: supplierID,
		Status:     PaymentStatus(r.URL.Query().Get("status")),
		Search:     r.URL.Query().Get("search"),
		Limit:      limit,
		Offset:     offset,
	}
	grns, total, err := h.service.ListGRNs(r.Context(), filter)
	if err != nil {
		h.logger.Error("list GRNs", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grns": grns, "total": total})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid grn id")
		return
	}
	grn, items, payments, err := h.service.GetGRN(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grn": grn, "items": items, "payments": payments})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createGRNRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateGRNInput{
		SupplierID:   req.SupplierID,
		ReceivedBy:   req.ReceivedBy,
		Notes:        req.Notes,
		PaidAmount:   req.PaidAmount,
		PaymentType:  PaymentType(req.PaymentType),
		ChequeNumber: req.ChequeNumber,
		ChequeDate:   parseDate(req.ChequeDate),
		PaymentDate:  parseDate(req.PaymentDate),
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, GRNItemInput{
			ProductID:      item.ProductID,
			Qty:            item.Qty,
			CostPrice:      item.CostPrice,
			ProductPrice:   item.ProductPrice,
			SellingPrice:   item.SellingPrice,
			WholesalePrice: item.WholesalePrice,
			ManufacturedAt: parseDate(item.ManufacturedAt),
			ExpiresAt:      parseDate(item.ExpiresAt),
		})
	}
	grn, err := h.service.CreateGRN(r.Context(), input)
	if err != nil {
		h.logger.Error("create GRN", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grn)
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid grn id")
		return
	}
	var req addPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	payment, err := h.service.AddPayment(r.Context(), AddPaymentInput{
		GRNID:        id,
		Type:         PaymentType(req.Type),
		Amount:       req.Amount,
		ChequeNumber: req.ChequeNumber,
		ChequeDate:   parseDate(req.ChequeDate),
		Notes:        req.Notes,
		RecordedBy:   req.RecordedBy,
		PaidAt:       parseDate(req.PaidAt),
	})
	if err != nil {
		h.logger.Error("add GRN payment", slog.Any("error", err), slog.Int64("grn_id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid grn id")
		return
	}
	rec, err := h.service.RecomputeStatus(r.Context(), id)
	if err != nil {
		h.logger.Error("reconcile GRN", slog.Any("error", err), slog.Int64("grn_id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrOverpayment), errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02", s)
	return t
}
