package accrual

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/loan-servicing/internal"
	"github.com/frahmantamala/loan-servicing/internal/transport"
	"github.com/frahmantamala/loan-servicing/pkg/logger"
	"github.com/go-chi/chi"

	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

type ServiceAPI interface {
	Run(ctx context.Context, runDate time.Time, triggeredBy string) (*RunSummary, error)
	WaiveFee(ctx context.Context, lateFeeRecordID int64, actor string) error
	ListFeeRecords(ctx context.Context, filter FeeRecordFilter) ([]*repmodel.LateFeeRecord, error)
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

// RunAccrual triggers the fee engine for a date. Re-triggering an already
// processed date reports already_processed instead of failing.
func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	actor := internal.ActorFromContext(r.Context())
	if actor == "" {
		h.Logger.Error("RunAccrual: actor not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto RunAccrualDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			h.Logger.Error("RunAccrual: invalid request body", "error", err)
			h.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	runDate, err := dto.ParseDate(time.Now())
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.Service.Run(r.Context(), runDate, actor)
	if err != nil {
		h.Logger.Error("RunAccrual: service error", "error", err, "run_date", runDate)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) WaiveFee(w http.ResponseWriter, r *http.Request) {
	actor := internal.ActorFromContext(r.Context())
	if actor == "" {
		h.Logger.Error("WaiveFee: actor not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.Logger.Error("WaiveFee: invalid fee record ID", "id", idStr)
		h.WriteError(w, http.StatusBadRequest, "invalid fee record ID")
		return
	}

	if err := h.Service.WaiveFee(r.Context(), id, actor); err != nil {
		h.Logger.Error("WaiveFee: service error", "error", err, "late_fee_record_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("WaiveFee: fee waived", "late_fee_record_id", id, "actor", actor)
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "waived"})
}

func (h *Handler) ListFeeRecords(w http.ResponseWriter, r *http.Request) {
	filter := FeeRecordFilter{Limit: 50}

	q := r.URL.Query()
	if v := q.Get("repayment_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.RepaymentID = &id
		}
	}
	if v := q.Get("loan_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.LoanID = &id
		}
	}
	if v := q.Get("status"); v != "" {
		filter.Status = v
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.To = &t
		}
	}
	if v := q.Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 200 {
			filter.Limit = l
		}
	}
	if v := q.Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	records, err := h.Service.ListFeeRecords(r.Context(), filter)
	if err != nil {
		h.Logger.Error("ListFeeRecords: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"fee_records": ToFeeRecordViews(records),
		"limit":       filter.Limit,
		"offset":      filter.Offset,
	})
}
