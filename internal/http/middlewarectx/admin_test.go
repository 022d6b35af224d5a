package middlewarectx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/middlewarectx"
)

func TestAdminOnlyMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		role           any
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:           "роль admin пропускается",
			role:           "admin",
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
		{
			name:           "обычный пользователь отклоняется",
			role:           "user",
			wantStatusCode: http.StatusForbidden,
			wantCalled:     false,
		},
		{
			name:           "роль отсутствует в контексте",
			role:           nil,
			wantStatusCode: http.StatusForbidden,
			wantCalled:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				handlerCalled = true
				w.WriteHeader(http.StatusOK)
			})

			mw := middlewarectx.AdminOnlyMiddleware()(nextHandler)

			req := httptest.NewRequest(http.MethodPost, "/admin/promotions", nil)
			if tt.role != nil {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.RoleKey, tt.role))
			}

			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, handlerCalled)
		})
	}
}
