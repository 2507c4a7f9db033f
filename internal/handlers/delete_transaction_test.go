package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dkotenko/finance-tracker/internal/services"
)

func TestDeleteRequestHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTokenGetter := NewMockTokener(ctrl)
	mockRemover := NewMockTransactionRemover(ctrl)
	mockRequester := NewMockConfirmationRequester(ctrl)

	userID := uuid.New()
	transactionID := uuid.New()
	confirmationID := uuid.New()
	token := "valid-token"

	expectAuthorized(mockTokenGetter, token, userID)

	var boundAction func(ctx context.Context) error
	mockRequester.EXPECT().
		Request(gomock.Any(), userID, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, message string, action func(ctx context.Context) error) services.Confirmation {
			boundAction = action
			return services.Confirmation{ID: confirmationID, Message: message}
		})

	router := chi.NewRouter()
	router.Post("/transactions/{transactionID}/delete", NewDeleteRequestHandler(mockRemover, mockRequester, mockTokenGetter))

	req := httptest.NewRequest(http.MethodPost, "/transactions/"+transactionID.String()+"/delete", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)

	var resp ConfirmationResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, confirmationID, resp.ConfirmationID)
	assert.NotEmpty(t, resp.Message)

	// The registered action performs the actual delete when invoked.
	mockRemover.EXPECT().Remove(gomock.Any(), userID, transactionID).Return(nil)
	assert.NoError(t, boundAction(context.Background()))
}

func TestDeleteRequestHandler_MalformedID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTokenGetter := NewMockTokener(ctrl)
	mockRemover := NewMockTransactionRemover(ctrl)
	mockRequester := NewMockConfirmationRequester(ctrl)

	expectAuthorized(mockTokenGetter, "valid-token", uuid.New())

	router := chi.NewRouter()
	router.Post("/transactions/{transactionID}/delete", NewDeleteRequestHandler(mockRemover, mockRequester, mockTokenGetter))

	req := httptest.NewRequest(http.MethodPost, "/transactions/not-a-uuid/delete", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConfirmHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTokenGetter := NewMockTokener(ctrl)
	mockConfirmer := NewMockConfirmer(ctrl)

	userID := uuid.New()
	confirmationID := uuid.New()
	token := "valid-token"

	tests := []struct {
		name           string
		target         string
		setupMocks     func()
		expectedStatus int
		expectedKey    string
	}{
		{
			name:   "successful confirm",
			target: "/confirmations/" + confirmationID.String() + "/confirm",
			setupMocks: func() {
				expectAuthorized(mockTokenGetter, token, userID)
				mockConfirmer.EXPECT().Confirm(gomock.Any(), userID, confirmationID).
					Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedKey:    "message",
		},
		{
			name:   "no pending confirmation",
			target: "/confirmations/" + confirmationID.String() + "/confirm",
			setupMocks: func() {
				expectAuthorized(mockTokenGetter, token, userID)
				mockConfirmer.EXPECT().Confirm(gomock.Any(), userID, confirmationID).
					Return(services.ErrNoPendingConfirmation)
			},
			expectedStatus: http.StatusNotFound,
			expectedKey:    "error",
		},
		{
			name:   "bound action fails with store error",
			target: "/confirmations/" + confirmationID.String() + "/confirm",
			setupMocks: func() {
				expectAuthorized(mockTokenGetter, token, userID)
				mockConfirmer.EXPECT().Confirm(gomock.Any(), userID, confirmationID).
					Return(errors.New("store unavailable"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedKey:    "error",
		},
		{
			name:   "bound action fails with unknown transaction",
			target: "/confirmations/" + confirmationID.String() + "/confirm",
			setupMocks: func() {
				expectAuthorized(mockTokenGetter, token, userID)
				mockConfirmer.EXPECT().Confirm(gomock.Any(), userID, confirmationID).
					Return(services.ErrTransactionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedKey:    "error",
		},
		{
			name:   "malformed confirmation id",
			target: "/confirmations/not-a-uuid/confirm",
			setupMocks: func() {
				expectAuthorized(mockTokenGetter, token, userID)
			},
			expectedStatus: http.StatusBadRequest,
			expectedKey:    "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMocks()

			router := chi.NewRouter()
			router.Post("/confirmations/{confirmationID}/confirm", NewConfirmHandler(mockConfirmer, mockTokenGetter))

			req := httptest.NewRequest(http.MethodPost, tt.target, nil)
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)

			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			_, ok := body[tt.expectedKey]
			assert.True(t, ok, "response should contain key %s", tt.expectedKey)
		})
	}
}

func TestCancelHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTokenGetter := NewMockTokener(ctrl)
	mockConfirmer := NewMockConfirmer(ctrl)

	userID := uuid.New()
	confirmationID := uuid.New()
	token := "valid-token"

	tests := []struct {
		name           string
		setupMocks     func()
		expectedStatus int
		expectedKey    string
	}{
		{
			name: "successful cancel",
			setupMocks: func() {
				expectAuthorized(mockTokenGetter, token, userID)
				mockConfirmer.EXPECT().Cancel(gomock.Any(), userID, confirmationID).
					Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedKey:    "message",
		},
		{
			name: "nothing pending",
			setupMocks: func() {
				expectAuthorized(mockTokenGetter, token, userID)
				mockConfirmer.EXPECT().Cancel(gomock.Any(), userID, confirmationID).
					Return(services.ErrNoPendingConfirmation)
			},
			expectedStatus: http.StatusNotFound,
			expectedKey:    "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMocks()

			router := chi.NewRouter()
			router.Post("/confirmations/{confirmationID}/cancel", NewCancelHandler(mockConfirmer, mockTokenGetter))

			req := httptest.NewRequest(http.MethodPost, "/confirmations/"+confirmationID.String()+"/cancel", nil)
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)

			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			_, ok := body[tt.expectedKey]
			assert.True(t, ok, "response should contain key %s", tt.expectedKey)
		})
	}
}
