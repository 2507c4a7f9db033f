package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/dkotenko/finance-tracker/internal/services"
)

func TestLoginHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := NewMockLoginer(ctrl)

	tests := []struct {
		name           string
		body           any
		setupMocks     func()
		expectedStatus int
		expectedKey    string // "token" or "error"
	}{
		{
			name: "successful login",
			body: LoginRequest{Username: "john_doe", Password: "secret123"},
			setupMocks: func() {
				mockSvc.EXPECT().
					Login(gomock.Any(), "john_doe", "secret123").
					Return("jwt-token", nil)
			},
			expectedStatus: http.StatusOK,
			expectedKey:    "token",
		},
		{
			name: "invalid credentials",
			body: LoginRequest{Username: "john_doe", Password: "wrong"},
			setupMocks: func() {
				mockSvc.EXPECT().
					Login(gomock.Any(), "john_doe", "wrong").
					Return("", services.ErrInvalidCredentials)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedKey:    "error",
		},
		{
			name: "unknown user",
			body: LoginRequest{Username: "ghost", Password: "secret123"},
			setupMocks: func() {
				mockSvc.EXPECT().
					Login(gomock.Any(), "ghost", "secret123").
					Return("", services.ErrUserDoesNotExist)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedKey:    "error",
		},
		{
			name:           "invalid request body",
			body:           "not-json",
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
			expectedKey:    "error",
		},
		{
			name: "internal server error",
			body: LoginRequest{Username: "john_doe", Password: "secret123"},
			setupMocks: func() {
				mockSvc.EXPECT().
					Login(gomock.Any(), "john_doe", "secret123").
					Return("", errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedKey:    "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMocks()
			handler := NewLoginHandler(mockSvc)

			var buf bytes.Buffer
			if s, ok := tt.body.(string); ok {
				buf.WriteString(s)
			} else {
				assert.NoError(t, json.NewEncoder(&buf).Encode(tt.body))
			}

			req := httptest.NewRequest(http.MethodPost, "/login", &buf)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)

			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			_, ok := body[tt.expectedKey]
			assert.True(t, ok, "response should contain key %s", tt.expectedKey)
		})
	}
}
