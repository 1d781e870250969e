package customers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
)

type createCustomerRequest struct {
	Name          string  `json:"name" validate:"required,max=200"`
	Phone         string  `json:"phone" validate:"required,max=20"`
	Email         string  `json:"email,omitempty" validate:"omitempty,email"`
	Type          string  `json:"type" validate:"required,oneof=loyalty wholesale"`
	CreditBalance float64 `json:"credit_balance,omitempty" validate:"gte=0"`
}

type updateCustomerRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Type     *string `json:"type,omitempty" validate:"omitempty,oneof=loyalty wholesale"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type adjustCreditRequest struct {
	Delta float64 `json:"delta" validate:"required"`
}

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/customers", h.list)
	r.Get("/customers/lookup", h.lookup)
	r.Get("/customers/{id}", h.show)
	r.Post("/customers", h.create)
	r.Put("/customers/{id}", h.update)
	r.Post("/customers/{id}/credit", h.adjustCredit)
	r.Delete("/customers/{id}", h.deactivate)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	filter := ListFilter{
		Search: r.URL.Query().Get("search"),
		Type:   Type(r.URL.Query().Get("type")),
		Limit:  limit,
		Offset: offset,
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		active := v == "true"
		filter.IsActive = &active
	}
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list customers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customers": items, "total": total})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	customer, err := h.service.Lookup(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	customer, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	customer, err := h.service.Create(r.Context(), CreateCustomerInput{
		Name:          req.Name,
		Phone:         req.Phone,
		Email:         req.Email,
		Type:          Type(req.Type),
		CreditBalance: req.CreditBalance,
	})
	if err != nil {
		h.logger.Error("create customer", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req updateCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := UpdateCustomerInput{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		IsActive: req.IsActive,
	}
	if req.Type != nil {
		t := Type(*req.Type)
		input.Type = &t
	}
	customer, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) adjustCredit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req adjustCreditRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	customer, err := h.service.AdjustCredit(r.Context(), id, req.Delta, 0)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Deactivate(r.Context(), id, 0); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid customer id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrDuplicatePhone):
		httpx.RespondError(w, httpx.ErrDuplicate)
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
