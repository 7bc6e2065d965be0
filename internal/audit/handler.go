package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/seersec/seer/internal/platform/httpx"
)

// Handler exposes the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Timeline handles GET /admin/audit.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	filters := TimelineFilters{
		Action: r.URL.Query().Get("action"),
	}
	if raw := r.URL.Query().Get("admin_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filters.AdminID = id
		}
	}
	if raw := r.URL.Query().Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil {
			filters.Page = page
		}
	}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil {
			filters.PageSize = size
		}
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("audit timeline", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
