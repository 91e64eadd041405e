package disbursement

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

	dismodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/disbursement"
)

type ServiceAPI interface {
	Disburse(ctx context.Context, dto DisburseDTO, actor string) (*Result, error)
	ListByApplication(ctx context.Context, applicationID int64) ([]*dismodel.Disbursement, error)
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

func (h *Handler) Disburse(w http.ResponseWriter, r *http.Request) {
	actor := internal.ActorFromContext(r.Context())
	if actor == "" {
		h.Logger.Error("Disburse: actor not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	var dto DisburseDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			h.Logger.Error("invalid disburse request", "error", err)
			h.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	dto.ApplicationID = id
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	result, err := h.Service.Disburse(r.Context(), dto, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	h.WriteJSON(w, status, ToResultView(result))
}

func (h *Handler) ListDisbursements(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	items, err := h.Service.ListByApplication(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToViews(items))
}
