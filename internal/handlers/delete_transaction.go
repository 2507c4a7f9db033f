package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dkotenko/finance-tracker/internal/logger"
	"github.com/dkotenko/finance-tracker/internal/services"
)

// TransactionRemover defines the interface that the service must implement.
type TransactionRemover interface {
	Remove(ctx context.Context, ownerID, transactionID uuid.UUID) error
}

// ConfirmationRequester registers a pending action for the owner.
type ConfirmationRequester interface {
	Request(ctx context.Context, ownerID uuid.UUID, message string, action func(ctx context.Context) error) services.Confirmation
}

// Confirmer settles a pending confirmation.
type Confirmer interface {
	Confirm(ctx context.Context, ownerID, confirmationID uuid.UUID) error
	Cancel(ctx context.Context, ownerID, confirmationID uuid.UUID) error
}

// ConfirmationResponse represents a pending confirmation
// swagger:model ConfirmationResponse
type ConfirmationResponse struct {
	// Identifier to confirm or cancel with
	ConfirmationID uuid.UUID `json:"confirmation_id"`

	// Human-readable prompt
	// default: Delete this transaction?
	Message string `json:"message"`
}

// ConfirmationSettledResponse represents a settled confirmation
// swagger:model ConfirmationSettledResponse
type ConfirmationSettledResponse struct {
	// Success message
	// default: Confirmed
	Message string `json:"message"`
}

// NewDeleteRequestHandler returns an HTTP handler that registers a pending
// delete. The delete itself only happens through the confirm endpoint; there
// is no direct delete route.
// @Summary Request transaction deletion
// @Description Registers a pending confirmation bound to the delete. A newer request replaces it.
// @Tags transactions
// @Produce json
// @Param transactionID path string true "Transaction ID"
// @Success 202 {object} handlers.ConfirmationResponse "Confirmation pending"
// @Failure 400 {object} handlers.TransactionErrorResponse "Invalid transaction id"
// @Failure 401 {object} handlers.TransactionErrorResponse "Unauthorized"
// @Router /transactions/{transactionID}/delete [post]
// @Security BearerAuth
func NewDeleteRequestHandler(svc TransactionRemover, confirmations ConfirmationRequester, tokenGetter Tokener) http.HandlerFunc {
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

		ownerID := claims.UserID
		c := confirmations.Request(ctx, ownerID,
			fmt.Sprintf("Delete transaction %s?", transactionID),
			func(ctx context.Context) error {
				return svc.Remove(ctx, ownerID, transactionID)
			},
		)

		logger.Log.Infow("delete confirmation requested", "userID", ownerID, "transactionID", transactionID, "confirmationID", c.ID)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(ConfirmationResponse{
			ConfirmationID: c.ID,
			Message:        c.Message,
		})
	}
}

// NewConfirmHandler returns an HTTP handler executing a pending confirmation.
// @Summary Confirm a pending action
// @Description Executes the bound action. On failure the confirmation stays pending.
// @Tags confirmations
// @Produce json
// @Param confirmationID path string true "Confirmation ID"
// @Success 200 {object} handlers.ConfirmationSettledResponse "Action executed"
// @Failure 401 {object} handlers.TransactionErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.TransactionErrorResponse "No pending confirmation"
// @Router /confirmations/{confirmationID}/confirm [post]
// @Security BearerAuth
func NewConfirmHandler(confirmations Confirmer, tokenGetter Tokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := ownerFromRequest(w, r, tokenGetter)
		if !ok {
			return
		}

		confirmationID, err := uuid.Parse(chi.URLParam(r, "confirmationID"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Invalid confirmation id"})
			return
		}

		if err := confirmations.Confirm(ctx, claims.UserID, confirmationID); err != nil {
			if errors.Is(err, services.ErrNoPendingConfirmation) {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "No pending confirmation"})
				return
			}
			writeTransactionError(w, claims.UserID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(ConfirmationSettledResponse{Message: "Confirmed"})
	}
}

// NewCancelHandler returns an HTTP handler discarding a pending confirmation
// without executing its bound action.
// @Summary Cancel a pending action
// @Description Discards the pending confirmation; the bound action never runs.
// @Tags confirmations
// @Produce json
// @Param confirmationID path string true "Confirmation ID"
// @Success 200 {object} handlers.ConfirmationSettledResponse "Confirmation discarded"
// @Failure 401 {object} handlers.TransactionErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.TransactionErrorResponse "No pending confirmation"
// @Router /confirmations/{confirmationID}/cancel [post]
// @Security BearerAuth
func NewCancelHandler(confirmations Confirmer, tokenGetter Tokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := ownerFromRequest(w, r, tokenGetter)
		if !ok {
			return
		}

		confirmationID, err := uuid.Parse(chi.URLParam(r, "confirmationID"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Invalid confirmation id"})
			return
		}

		if err := confirmations.Cancel(ctx, claims.UserID, confirmationID); err != nil {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "No pending confirmation"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(ConfirmationSettledResponse{Message: "Cancelled"})
	}
}
