package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dkotenko/finance-tracker/internal/logger"
)

// TransactionEditor defines the interface that the service must implement.
type TransactionEditor interface {
	Edit(ctx context.Context, ownerID, transactionID uuid.UUID, text, amount string) error
}

// UpdateTransactionRequest represents the JSON body for editing a transaction
// swagger:model UpdateTransactionRequest
type UpdateTransactionRequest struct {
	// Display label
	// required: true
	// default: Rent
	Text string `json:"text"`

	// Signed amount; positive income, negative expense
	// required: true
	// default: -20
	Amount string `json:"amount"`
}

// UpdateTransactionResponse represents a successful edit
// swagger:model UpdateTransactionResponse
type UpdateTransactionResponse struct {
	// Success message
	// default: Transaction updated successfully
	Message string `json:"message"`
}

// NewUpdateTransactionHandler returns an HTTP handler editing a transaction's
// text and amount. The attachment URL is never touched by an edit.
// @Summary Edit a transaction
// @Description Replaces text and amount of the given transaction
// @Tags transactions
// @Accept json
// @Produce json
// @Param transactionID path string true "Transaction ID"
// @Param request body handlers.UpdateTransactionRequest true "Edit Request"
// @Success 200 {object} handlers.UpdateTransactionResponse "Transaction updated"
// @Failure 400 {object} handlers.TransactionErrorResponse "Invalid text or amount"
// @Failure 401 {object} handlers.TransactionErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.TransactionErrorResponse "Transaction not found"
// @Router /transactions/{transactionID} [put]
// @Security BearerAuth
func NewUpdateTransactionHandler(svc TransactionEditor, tokenGetter Tokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := ownerFromRequest(w, r, tokenGetter)
		if !ok {
			return
		}

		transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Invalid transaction id"})
			return
		}

		var req UpdateTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Warnw("failed to decode edit request", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Invalid request body"})
			return
		}

		if err := svc.Edit(ctx, claims.UserID, transactionID, req.Text, req.Amount); err != nil {
			writeTransactionError(w, claims.UserID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(UpdateTransactionResponse{
			Message: "Transaction updated successfully",
		})
	}
}
