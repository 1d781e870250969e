package analytics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
	r.Get("/reports/sales", h.salesReport)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dashboard)
}

func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
		return
	}
	rows, err := h.service.SalesReport(r.Context(), from, to)
	if err != nil {
		h.logger.Error("sales report", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}
