// Package resume реализует HTTP-обработчик снятия запланированной отмены.
//
// Возобновление возможно только пока оплаченное окно не истекло.
// Повторный вызов идемпотентен.
package resume

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

// Handler управляет HTTP-запросами на возобновление подписки.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики команд биллинга
}

// Service описывает интерфейс бизнес-логики возобновления подписки.
type Service interface {
	ResumeSubscription(ctx context.Context, userUID string) (*models.ResumeResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Возобновить подписку
// @Description Снимает запланированную отмену, пока оплаченное окно не истекло.
// @Tags Billing
// @Produce  json
// @Success 200 {object} map[string]any "Отмена снята"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 409 {object} response.ErrorResponse "Подписка завершена или неактивна"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при возобновлении"
// @Security BearerAuth
// @Router /subscription/resume [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.resume"
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

	result, err := h.service.ResumeSubscription(r.Context(), userUID)
	if err != nil {
		if status, resp, ok := response.RenderCommandError(err); ok {
			log.Info("resume rejected", slog.String("code", resp.Code))
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}
		log.Error("failed to resume subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not resume subscription"))
		return
	}

	log.Info("succes to resume subscription", slog.Bool("already_resumed", result.AlreadyResumed))
	render.JSON(w, r, response.OKWithData(result))
}
