// Package overriderevoke реализует HTTP-обработчик отзыва оверрайда доступа.
//
// Отзыв укорачивает действующий оверрайд до текущего момента. Уже истекший
// оверрайд считается отозванным, будущий отозвать нельзя.
package overriderevoke

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/response"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// Handler управляет HTTP-запросами на отзыв оверрайдов.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики команд биллинга
}

// Service описывает интерфейс бизнес-логики отзыва оверрайда.
type Service interface {
	RevokeAdminOverride(ctx context.Context, id int64, adminUID *string) (*models.RevokeOverrideResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отозвать оверрайд доступа
// @Description Укорачивает действующий оверрайд до текущего момента. Повторный вызов идемпотентен.
// @Tags Admin
// @Produce  json
// @Param id path int true "ID оверрайда"
// @Success 200 {object} map[string]any "Оверрайд отозван"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 404 {object} response.ErrorResponse "Оверрайд не найден"
// @Failure 422 {object} response.ErrorResponse "Оверрайд еще не начал действовать"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при отзыве"
// @Security BearerAuth
// @Router /admin/overrides/{id}/revoke [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.overriderevoke"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		log.Error("failed to parse override id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid override id"))
		return
	}

	adminUID, ok := r.Context().Value(middlewarectx.UserUIDKey).(string)
	if !ok || adminUID == "" {
		log.Error("admin uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	result, err := h.service.RevokeAdminOverride(r.Context(), id, &adminUID)
	if err != nil {
		if status, resp, ok := response.RenderCommandError(err); ok {
			log.Info("override revoke rejected", slog.String("code", resp.Code))
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}
		log.Error("failed to revoke override", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not revoke override"))
		return
	}

	log.Info("succes to revoke override",
		slog.Int64("id", id),
		slog.Bool("already_revoked", result.AlreadyRevoked))
	render.JSON(w, r, response.OKWithData(result))
}
