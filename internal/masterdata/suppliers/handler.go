package suppliers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
)

type supplierRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	ContactPerson string `json:"contact_person,omitempty" validate:"max=100"`
	Phone         string `json:"phone,omitempty" validate:"max=20"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	Address       string `json:"address,omitempty" validate:"max=500"`
	IsActive      *bool  `json:"is_active,omitempty"`
}

type Handler struct {
	logger   *slog.Logger
	repo     Repository
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/suppliers", h.list)
	r.Get("/suppliers/{id}", h.show)
	r.Post("/suppliers", h.create)
	r.Put("/suppliers/{id}", h.update)
	r.Delete("/suppliers/{id}", h.deactivate)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	filter := ListFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		active := v == "true"
		filter.IsActive = &active
	}
	items, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list suppliers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suppliers": items, "total": total})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid supplier id")
		return
	}
	supplier, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	supplier, err := h.repo.Create(r.Context(), Supplier{
		Name:          strings.TrimSpace(req.Name),
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Phone:         strings.TrimSpace(req.Phone),
		Email:         strings.TrimSpace(req.Email),
		Address:       strings.TrimSpace(req.Address),
	})
	if err != nil {
		h.logger.Error("create supplier", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, supplier)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid supplier id")
		return
	}
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	supplier, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	supplier.Name = strings.TrimSpace(req.Name)
	supplier.ContactPerson = strings.TrimSpace(req.ContactPerson)
	supplier.Phone = strings.TrimSpace(req.Phone)
	supplier.Email = strings.TrimSpace(req.Email)
	supplier.Address = strings.TrimSpace(req.Address)
	if req.IsActive != nil {
		supplier.IsActive = *req.IsActive
	}
	if err := h.repo.Update(r.Context(), id, supplier); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid supplier id")
		return
	}
	if err := h.repo.Deactivate(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	httpx.RespondError(w, err)
}
