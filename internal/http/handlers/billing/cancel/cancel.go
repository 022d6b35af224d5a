// Package cancel реализует HTTP-обработчик планирования отмены подписки.
//
// Отмена не прекращает доступ немедленно: подписка дорабатывает оплаченное
// окно и завершается в его конце. Повторный вызов идемпотентен.
package cancel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/response"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// Handler управляет HTTP-запросами на отмену подписки.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики команд биллинга
}

// Service описывает интерфейс бизнес-логики отмены подписки.
type Service interface {
	ScheduleCancelAtPeriodEnd(ctx context.Context, userUID string) (*models.ScheduleCancelResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Запланировать отмену подписки
// @Description Помечает подписку на отмену в конце оплаченного периода. Доступ сохраняется до конца окна.
// @Tags Billing
// @Produce  json
// @Success 200 {object} map[string]any "Отмена запланирована"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 409 {object} response.ErrorResponse "Подписка завершена или неактивна"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при отмене подписки"
// @Security BearerAuth
// @Router /subscription/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.cancel"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUIDKey).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	result, err := h.service.ScheduleCancelAtPeriodEnd(r.Context(), userUID)
	if err != nil {
		if status, resp, ok := response.RenderCommandError(err); ok {
			log.Info("cancel rejected", slog.String("code", resp.Code))
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}
		log.Error("failed to schedule cancel", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not schedule cancel"))
		return
	}

	log.Info("succes to schedule cancel", slog.Bool("already_scheduled", result.AlreadyScheduled))
	render.JSON(w, r, response.OKWithData(result))
}
