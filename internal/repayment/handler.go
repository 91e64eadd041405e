package repayment

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/loan-servicing/internal/transport"
	"github.com/frahmantamala/loan-servicing/pkg/logger"
	"github.com/go-chi/chi"

	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

type ServiceAPI interface {
	ListByLoan(ctx context.Context, loanID int64) ([]*repmodel.LoanRepayment, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*repmodel.LoanRepayment, error)
	ListDueBetween(ctx context.Context, from, to time.Time) ([]*repmodel.LoanRepayment, error)
	Totals(ctx context.Context, loanID int64) (*LoanTotals, error)
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

func (h *Handler) loanID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "loanID")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.Logger.Error("invalid loan ID", "id", idStr)
		h.WriteError(w, http.StatusBadRequest, "invalid loan ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) ListSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loanID(w, r)
	if !ok {
		return
	}

	repayments, err := h.Service.ListByLoan(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToViews(repayments))
}

func (h *Handler) LoanTotals(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loanID(w, r)
	if !ok {
		return
	}

	totals, err := h.Service.Totals(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToTotalsView(totals))
}

// ListDue serves the collections view: either every repayment in a status, or
// everything falling due inside a date window.
func (h *Handler) ListDue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if status := q.Get("status"); status != "" {
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		repayments, err := h.Service.ListByStatus(r.Context(), status, limit, offset)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, ToViews(repayments))
		return
	}

	from, err := time.Parse("2006-01-02", q.Get("from"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", q.Get("to"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		h.WriteError(w, http.StatusBadRequest, "to must not precede from")
		return
	}

	repayments, err := h.Service.ListDueBetween(r.Context(), from, to)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToViews(repayments))
}
