package promotoggle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// MockService реализует интерфейс promotoggle.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) EnablePromotion(ctx context.Context, id int64, adminUID *string) (*models.TogglePromotionResult, error) {
	args := m.Called(ctx, id, adminUID)
	if res := args.Get(0); res != nil {
		return res.(*models.TogglePromotionResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) DisablePromotion(ctx context.Context, id int64, adminUID *string) (*models.TogglePromotionResult, error) {
	args := m.Called(ctx, id, adminUID)
	if res := args.Get(0); res != nil {
		return res.(*models.TogglePromotionResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestPromoToggleHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		enable         bool
		urlID          string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "успешное отключение акции",
			enable: false,
			urlID:  "42",
			setupMock: func(m *MockService) {
				m.On("DisablePromotion", mock.Anything, int64(42), mock.Anything).
					Return(&models.TogglePromotionResult{Changed: true}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"changed":true`,
		},
		{
			name:   "повторное включение идемпотентно",
			enable: true,
			urlID:  "42",
			setupMock: func(m *MockService) {
				m.On("EnablePromotion", mock.Anything, int64(42), mock.Anything).
					Return(&models.TogglePromotionResult{Changed: false}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"changed":false`,
		},
		{
			name:           "некорректный id в URL",
			enable:         false,
			urlID:          "abc",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid promotion id"`,
		},
		{
			name:   "акция не найдена",
			enable: false,
			urlID:  "777",
			setupMock: func(m *MockService) {
				m.On("DisablePromotion", mock.Anything, int64(777), mock.Anything).
					Return(nil, models.NewCommandError(models.CodeNotFound, "promotion not found"))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"code":"NOT_FOUND"`,
		},
		{
			name:   "ошибка сервиса",
			enable: false,
			urlID:  "42",
			setupMock: func(m *MockService) {
				m.On("DisablePromotion", mock.Anything, int64(42), mock.Anything).
					Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not toggle promotion"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			var handler *Handler
			if tt.enable {
				handler = NewEnable(logger, mockService)
			} else {
				handler = NewDisable(logger, mockService)
			}

			req := httptest.NewRequest(http.MethodPost, "/admin/promotions/"+tt.urlID+"/disable", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.urlID)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			ctx = context.WithValue(ctx, middlewarectx.UserUIDKey, "admin-1")
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
