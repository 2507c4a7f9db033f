package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/dkotenko/finance-tracker/internal/logger"
	"github.com/dkotenko/finance-tracker/internal/models"
)

// SummaryReader defines the interface that the service must implement.
type SummaryReader interface {
	Aggregates(ctx context.Context, ownerID uuid.UUID) (*models.Summary, error)
}

// BalanceResponse represents a successful response with the user's summary
// swagger:model BalanceResponse
type BalanceResponse struct {
	// Income, expense and balance derived from the current transactions
	Balance *models.Summary `json:"balance"`
}

// BalanceErrorResponse represents an error response when fetching balance
// swagger:model BalanceErrorResponse
type BalanceErrorResponse struct {
	// Error message
	// default: Unauthorized
	Error string `json:"error"`
}

// NewGetBalanceHandler returns an HTTP handler for fetching the user's
// income/expense/balance summary.
// @Summary Get balance summary
// @Description Returns income (sum of positive amounts), expense (sum of negative amounts, sign retained) and balance
// @Tags balance
// @Produce json
// @Success 200 {object} handlers.BalanceResponse "User summary"
// @Failure 401 {object} handlers.BalanceErrorResponse "Unauthorized"
// @Failure 500 {object} handlers.BalanceErrorResponse "Internal server error"
// @Router /balance [get]
// @Security BearerAuth
func NewGetBalanceHandler(svc SummaryReader, tokenGetter Tokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := ownerFromRequest(w, r, tokenGetter)
		if !ok {
			return
		}

		summary, err := svc.Aggregates(ctx, claims.UserID)
		if err != nil {
			logger.Log.Errorw("failed to compute summary", "userID", claims.UserID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(BalanceErrorResponse{Error: "Internal server error"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(BalanceResponse{Balance: summary})
	}
}
