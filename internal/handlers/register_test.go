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

func TestRegisterHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := NewMockRegisterer(ctrl)

	tests := []struct {
		name           string
		body           any
		setupMocks     func()
		expectedStatus int
		expectedKey    string // "message" or "error"
	}{
		{
			name: "successful registration",
			body: RegisterRequest{Username: "john_doe", Password: "secret123", Email: "john@example.com"},
			setupMocks: func() {
				mockSvc.EXPECT().
					Register(gomock.Any(), "john_doe", "secret123", "john@example.com").
					Return(nil)
			},
			expectedStatus: http.StatusCreated,
			expectedKey:    "message",
		},
		{
			name: "user already exists",
			body: RegisterRequest{Username: "john_doe", Password: "secret123", Email: "john@example.com"},
			setupMocks: func() {
				mockSvc.EXPECT().
					Register(gomock.Any(), "john_doe", "secret123", "john@example.com").
					Return(services.ErrUserAlreadyExists)
			},
			expectedStatus: http.StatusBadRequest,
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
			body: RegisterRequest{Username: "john_doe", Password: "secret123", Email: "john@example.com"},
			setupMocks: func() {
				mockSvc.EXPECT().
					Register(gomock.Any(), "john_doe", "secret123", "john@example.com").
					Return(errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedKey:    "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMocks()
			handler := NewRegisterHandler(mockSvc)

			var buf bytes.Buffer
			if s, ok := tt.body.(string); ok {
				buf.WriteString(s)
			} else {
				assert.NoError(t, json.NewEncoder(&buf).Encode(tt.body))
			}

			req := httptest.NewRequest(http.MethodPost, "/register", &buf)
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
