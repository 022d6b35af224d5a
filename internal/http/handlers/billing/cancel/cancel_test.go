package cancel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// MockService реализует интерфейс cancel.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) ScheduleCancelAtPeriodEnd(ctx context.Context, userUID string) (*models.ScheduleCancelResult, error) {
	args := m.Called(ctx, userUID)
	if res := args.Get(0); res != nil {
		return res.(*models.ScheduleCancelResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestCancelHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "успешное планирование отмены",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("ScheduleCancelAtPeriodEnd", mock.Anything, "uid-1").
					Return(&models.ScheduleCancelResult{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"already_scheduled":false`,
		},
		{
			name:    "повторный вызов идемпотентен",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("ScheduleCancelAtPeriodEnd", mock.Anything, "uid-1").
					Return(&models.ScheduleCancelResult{AlreadyScheduled: true}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"already_scheduled":true`,
		},
		{
			name:    "подписка не найдена",
			userUID: "uid-2",
			setupMock: func(m *MockService) {
				m.On("ScheduleCancelAtPeriodEnd", mock.Anything, "uid-2").
					Return(nil, models.NewCommandError(models.CodeNotFound, "subscription not found"))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"code":"NOT_FOUND"`,
		},
		{
			name:    "подписка завершена",
			userUID: "uid-3",
			setupMock: func(m *MockService) {
				m.On("ScheduleCancelAtPeriodEnd", mock.Anything, "uid-3").
					Return(nil, models.NewCommandError(models.CodeSubscriptionEnded, "subscription has ended"))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"code":"SUBSCRIPTION_ENDED"`,
		},
		{
			name:    "ошибка сервиса",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("ScheduleCancelAtPeriodEnd", mock.Anything, "uid-1").
					Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not schedule cancel"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/subscription/cancel", nil)
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUIDKey, tt.userUID))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
