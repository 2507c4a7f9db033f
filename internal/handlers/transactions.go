package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/dkotenko/finance-tracker/internal/jwt"
	"github.com/dkotenko/finance-tracker/internal/logger"
	"github.com/dkotenko/finance-tracker/internal/models"
	"github.com/dkotenko/finance-tracker/internal/services"
	"github.com/dkotenko/finance-tracker/internal/uploader"
)

// maxUploadSize bounds the multipart form held in memory.
const maxUploadSize = 32 << 20

// TransactionLister defines the interface that the service must implement.
type TransactionLister interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]models.TransactionDB, error)
}

// TransactionAdder defines the interface that the service must implement.
type TransactionAdder interface {
	Add(ctx context.Context, ownerID uuid.UUID, text, amount string, file io.Reader, filename string) (*models.TransactionDB, error)
}

// TransactionsResponse represents the transaction list, most recent first
// swagger:model TransactionsResponse
type TransactionsResponse struct {
	// Transactions, most recent first
	Transactions []models.TransactionDB `json:"transactions"`
}

// TransactionCreatedResponse represents a successful add
// swagger:model TransactionCreatedResponse
type TransactionCreatedResponse struct {
	// Success message
	// default: Transaction added successfully
	Message string `json:"message"`

	// The created transaction
	Transaction *models.TransactionDB `json:"transaction"`
}

// TransactionErrorResponse represents an error response for transactions
// swagger:model TransactionErrorResponse
type TransactionErrorResponse struct {
	// Error message
	// default: Invalid text or amount
	Error string `json:"error"`
}

// NewListTransactionsHandler returns an HTTP handler listing the owner's
// transactions.
// @Summary List transactions
// @Description Returns the authenticated user's transactions, most recent first
// @Tags transactions
// @Produce json
// @Success 200 {object} handlers.TransactionsResponse "Transaction list"
// @Failure 401 {object} handlers.TransactionErrorResponse "Unauthorized"
// @Failure 500 {object} handlers.TransactionErrorResponse "Internal server error"
// @Router /transactions [get]
// @Security BearerAuth
func NewListTransactionsHandler(svc TransactionLister, tokenGetter Tokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := ownerFromRequest(w, r, tokenGetter)
		if !ok {
			return
		}

		transactions, err := svc.List(ctx, claims.UserID)
		if err != nil {
			logger.Log.Errorw("failed to list transactions", "userID", claims.UserID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Internal server error"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(TransactionsResponse{Transactions: transactions})
	}
}

// NewCreateTransactionHandler returns an HTTP handler adding a transaction.
// The request is a multipart form with text, amount and an optional file
// attachment; the attachment is uploaded before anything is persisted.
// @Summary Add a transaction
// @Description Validates text and amount, uploads the optional attachment, persists the transaction
// @Tags transactions
// @Accept mpfd
// @Produce json
// @Param text formData string true "Display label"
// @Param amount formData string true "Signed amount; positive income, negative expense"
// @Param file formData file false "Optional attachment"
// @Success 201 {object} handlers.TransactionCreatedResponse "Transaction created"
// @Failure 400 {object} handlers.TransactionErrorResponse "Invalid text or amount"
// @Failure 401 {object} handlers.TransactionErrorResponse "Unauthorized"
// @Failure 502 {object} handlers.TransactionErrorResponse "Attachment upload failed"
// @Router /transactions [post]
// @Security BearerAuth
func NewCreateTransactionHandler(svc TransactionAdder, tokenGetter Tokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := ownerFromRequest(w, r, tokenGetter)
		if !ok {
			return
		}

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			logger.Log.Warnw("failed to parse multipart form", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Invalid request body"})
			return
		}

		text := r.FormValue("text")
		amount := r.FormValue("amount")

		var file io.Reader
		var filename string
		if f, header, err := r.FormFile("file"); err == nil {
			defer f.Close()
			file = f
			filename = header.Filename
		} else if !errors.Is(err, http.ErrMissingFile) {
			logger.Log.Warnw("failed to read attachment from form", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Invalid request body"})
			return
		}

		saved, err := svc.Add(ctx, claims.UserID, text, amount, file, filename)
		if err != nil {
			writeTransactionError(w, claims.UserID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(TransactionCreatedResponse{
			Message:     "Transaction added successfully",
			Transaction: saved,
		})
	}
}

// ownerFromRequest resolves the authenticated owner or writes a 401.
func ownerFromRequest(w http.ResponseWriter, r *http.Request, tokenGetter Tokener) (*jwt.Claims, bool) {
	ctx := r.Context()

	tokenStr, err := tokenGetter.GetTokenFromRequest(ctx, r)
	if err != nil {
		logger.Log.Errorw("failed to get token from request", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Unauthorized"})
		return nil, false
	}

	claims, err := tokenGetter.GetClaims(ctx, tokenStr)
	if err != nil {
		logger.Log.Errorw("failed to get claims from token", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Unauthorized"})
		return nil, false
	}

	return claims, true
}

// writeTransactionError maps service errors to HTTP status codes.
func writeTransactionError(w http.ResponseWriter, userID uuid.UUID, err error) {
	var upErr *uploader.Error
	switch {
	case errors.Is(err, services.ErrEmptyText), errors.Is(err, services.ErrInvalidAmount):
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(TransactionErrorResponse{Error: err.Error()})
	case errors.As(err, &upErr):
		logger.Log.Errorw("attachment upload failed", "userID", userID, "error", err)
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(TransactionErrorResponse{Error: upErr.Error()})
	case errors.Is(err, services.ErrTransactionNotFound):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Transaction not found"})
	default:
		logger.Log.Errorw("transaction operation failed", "userID", userID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Internal server error"})
	}
}
