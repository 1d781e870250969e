package categories

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

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description,omitempty" validate:"max=500"`
	IsActive    *bool  `json:"is_active,omitempty"`
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
	r.Get("/categories", h.list)
	r.Get("/categories/{id}", h.show)
	r.Post("/categories", h.create)
	r.Put("/categories/{id}", h.update)
	r.Delete("/categories/{id}", h.deactivate)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	items, err := h.repo.List(r.Context(), includeInactive)
	if err != nil {
		h.logger.Error("list categories", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": items})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid category id")
		return
	}
	category, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, category)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	category, err := h.repo.Create(r.Context(), Category{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		h.logger.Error("create category", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, category)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid category id")
		return
	}
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	category, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	category.Name = strings.TrimSpace(req.Name)
	category.Description = strings.TrimSpace(req.Description)
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}
	if err := h.repo.Update(r.Context(), id, category); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, category)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid category id")
		return
	}
	if err := h.repo.Deactivate(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrDuplicateName):
		httpx.RespondError(w, httpx.ErrDuplicate)
	case errors.Is(err, ErrInUse):
		httpx.Problem(w, http.StatusConflict, "Invalid State", "category still has active products")
	default:
		httpx.RespondError(w, err)
	}
}
