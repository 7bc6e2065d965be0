package threats

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/seersec/seer/internal/identity"
	"github.com/seersec/seer/internal/platform/httpx"
	"github.com/seersec/seer/internal/rbac"
)

// Handler exposes the threat intelligence endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW, validator: validator.New()}
}

// MountRoutes registers the /threats route group.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(identity.PermViewThreats))
		r.Get("/logs", h.listLogs)
		r.Get("/stats", h.stats)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(identity.PermManageThreats))
		r.Post("/logs", h.ingest)
		r.Put("/logs/{id}/resolve", h.resolve)
	})
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	filters := Filters{
		Severity: r.URL.Query().Get("severity"),
		Type:     r.URL.Query().Get("threat_type"),
	}
	if raw := r.URL.Query().Get("time_range"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "time_range must be an integer number of hours")
			return
		}
		filters.Window = time.Duration(hours) * time.Hour
	}
	logs, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list threat logs", err)
		return
	}
	if logs == nil {
		logs = []ThreatLog{}
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, "threat stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

type ingestRequest struct {
	Type        string `json:"type" validate:"required"`
	Severity    string `json:"severity" validate:"required,oneof=Critical High Medium Low"`
	SourceIP    string `json:"source_ip" validate:"required,ip"`
	Description string `json:"description"`
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	stored, err := h.service.Ingest(r.Context(), ThreatLog{
		Type:        req.Type,
		Severity:    req.Severity,
		SourceIP:    req.SourceIP,
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, "ingest threat log", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, stored)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid log id")
		return
	}
	if err := h.service.Resolve(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "Threat log not found")
			return
		}
		h.fail(w, "resolve threat log", err)
		return
	}
	httpx.Message(w, http.StatusOK, "Threat resolved successfully")
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
