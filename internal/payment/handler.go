package payment

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

	paymodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/payment"
)

type ServiceAPI interface {
	Submit(ctx context.Context, dto SubmitPaymentDTO) (*paymodel.PendingPayment, error)
	Approve(ctx context.Context, paymentID int64, actor, notes string) (*ApprovalResult, error)
	Reject(ctx context.Context, paymentID int64, actor, reason, notes string) (*paymodel.PendingPayment, error)
	GetByID(ctx context.Context, paymentID int64) (*paymodel.PendingPayment, error)
	List(ctx context.Context, filter ListFilter) ([]*paymodel.PendingPayment, error)
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

func (h *Handler) paymentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.Logger.Error("invalid payment ID", "id", idStr)
		h.WriteError(w, http.StatusBadRequest, "invalid payment ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	actor := internal.ActorFromContext(r.Context())
	if actor == "" {
		h.Logger.Error("SubmitPayment: actor not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto SubmitPaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("SubmitPayment: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.Service.Submit(r.Context(), dto)
	if err != nil {
		h.Logger.Error("SubmitPayment: service error", "error", err, "loan_id", dto.LoanID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, ToView(p))
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}

	p, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToView(p))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Limit: 50}

	q := r.URL.Query()
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

	payments, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.Logger.Error("ListPayments: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"payments": ToViews(payments),
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

func (h *Handler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	actor := internal.ActorFromContext(r.Context())
	if actor == "" {
		h.Logger.Error("ApprovePayment: actor not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}

	var dto ApprovePaymentDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			h.Logger.Error("ApprovePayment: invalid request body", "error", err)
			h.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.Service.Approve(r.Context(), id, actor, dto.Notes)
	if err != nil {
		h.Logger.Error("ApprovePayment: service error", "error", err, "payment_id", id, "actor", actor)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("ApprovePayment: payment approved", "payment_id", id, "actor", actor)
	h.WriteJSON(w, http.StatusOK, ToApprovalView(result))
}

func (h *Handler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	actor := internal.ActorFromContext(r.Context())
	if actor == "" {
		h.Logger.Error("RejectPayment: actor not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}

	var dto RejectPaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("RejectPayment: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.Service.Reject(r.Context(), id, actor, dto.Reason, dto.Notes)
	if err != nil {
		h.Logger.Error("RejectPayment: service error", "error", err, "payment_id", id, "actor", actor)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("RejectPayment: payment rejected", "payment_id", id, "reason", dto.Reason, "actor", actor)
	h.WriteJSON(w, http.StatusOK, ToView(p))
}
