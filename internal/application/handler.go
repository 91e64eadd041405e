package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/loan-servicing/internal"
	"github.com/frahmantamala/loan-servicing/internal/transport"
	"github.com/frahmantamala/loan-servicing/pkg/logger"
	"github.com/go-chi/chi"

	appmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/application"
)

type ServiceAPI interface {
	Transition(ctx context.Context, applicationID int64, newStatus, actor, notes string) (*appmodel.LoanApplication, error)
	Advance(ctx context.Context, applicationID int64, actor, notes string) (*appmodel.LoanApplication, error)
	GetWithHistory(ctx context.Context, applicationID int64) (*appmodel.LoanApplication, []*appmodel.ApplicationHistory, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) applicationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.Logger.Error("invalid application ID", "id", idStr)
		h.WriteError(w, http.StatusBadRequest, "invalid application ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	app, history, err := h.Service.GetWithHistory(r.Context(), id)
	if err != nil {
		h.Logger.Error("GetApplication: service error", "error", err, "application_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToView(app, history))
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	actor := internal.ActorFromContext(r.Context())
	if actor == "" {
		h.Logger.Error("Transition: actor not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	var dto TransitionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Transition: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	app, err := h.Service.Transition(r.Context(), id, dto.NewStatus, actor, dto.Notes)
	if err != nil {
		h.Logger.Error("Transition: service error", "error", err, "application_id", id, "new_status", dto.NewStatus)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("Transition: application transitioned",
		"application_id", id,
		"new_status", app.Status,
		"actor", actor)

	h.WriteJSON(w, http.StatusOK, ToView(app, nil))
}

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	actor := internal.ActorFromContext(r.Context())
	if actor == "" {
		h.Logger.Error("Advance: actor not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	var dto AdvanceDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			h.Logger.Error("Advance: invalid request body", "error", err)
			h.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	app, err := h.Service.Advance(r.Context(), id, actor, dto.Notes)
	if err != nil {
		h.Logger.Error("Advance: service error", "error", err, "application_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("Advance: application advanced", "application_id", id, "new_status", app.Status, "actor", actor)
	h.WriteJSON(w, http.StatusOK, ToView(app, nil))
}
