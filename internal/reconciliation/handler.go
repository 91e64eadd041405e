package reconciliation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/frahmantamala/loan-servicing/internal"
	"github.com/frahmantamala/loan-servicing/internal/transport"
	"github.com/frahmantamala/loan-servicing/pkg/logger"
)

const maxStatementSize = 10 << 20 // 10 MiB

type ServiceAPI interface {
	MatchStatement(ctx context.Context, statement io.Reader) (*MatchResult, []RowError, error)
	BatchApprove(ctx context.Context, paymentIDs []int64, actor string) *BatchSummary
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

// MatchStatement accepts the statement either as a multipart upload under the
// "statement" field or as a raw CSV request body.
func (h *Handler) MatchStatement(w http.ResponseWriter, r *http.Request) {
	statement, err := statementReader(r)
	if err != nil {
		h.Logger.Error("failed to read uploaded statement", "error", err)
		h.WriteError(w, http.StatusBadRequest, "could not read statement upload")
		return
	}
	defer statement.Close()

	result, rowErrors, err := h.Service.MatchStatement(r.Context(), statement)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToMatchResponse(result, rowErrors))
}

func (h *Handler) BatchApprove(w http.ResponseWriter, r *http.Request) {
	actor := internal.ActorFromContext(r.Context())
	if actor == "" {
		h.Logger.Error("BatchApprove: actor not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto BatchApproveDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("invalid batch approve request", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	summary := h.Service.BatchApprove(r.Context(), dto.PaymentIDs, actor)
	h.WriteJSON(w, http.StatusOK, summary)
}

func statementReader(r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxStatementSize)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("statement")
		if err != nil {
			return nil, err
		}
		return file, nil
	}
	return r.Body, nil
}
