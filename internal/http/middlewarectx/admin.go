package middlewarectx

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/response"
)

// AdminOnlyMiddleware пропускает дальше только пользователей с ролью admin.
func AdminOnlyMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := r.Context().Value(RoleKey).(string)
			if !ok || role != "admin" {
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, response.Error("admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
