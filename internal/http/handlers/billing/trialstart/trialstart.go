// Package trialstart реализует HTTP-обработчик запуска пробного периода.
//
// Handler извлекает данные пользователя из контекста запроса и вызывает
// бизнес-логику старта триала. Пробный период выдается один раз на
// пользователя и только при подтвержденном email.
package trialstart

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

// Handler управляет HTTP-запросами на запуск пробного периода.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики команд биллинга
}

// Service описывает интерфейс бизнес-логики запуска триала.
type Service interface {
	StartTrial(ctx context.Context, userUID, email string, emailVerified bool) (*models.StartTrialResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Запустить пробный период
// @Description Выдает текущему пользователю пробный период. Повторный запуск невозможен.
// @Tags Billing
// @Produce  json
// @Success 200 {object} map[string]any "Пробный период запущен"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Email не подтвержден"
// @Failure 409 {object} response.ErrorResponse "Доступ уже есть или триал уже использован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при запуске триала"
// @Security BearerAuth
// @Router /trial/start [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.trialstart"
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
	email, _ := r.Context().Value(middlewarectx.EmailKey).(string)
	emailVerified, _ := r.Context().Value(middlewarectx.EmailVerifiedKey).(bool)

	result, err := h.service.StartTrial(r.Context(), userUID, email, emailVerified)
	if err != nil {
		if status, resp, ok := response.RenderCommandError(err); ok {
			log.Info("trial start rejected", slog.String("code", resp.Code))
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}
		log.Error("failed to start trial", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not start trial"))
		return
	}

	log.Info("succes to start trial",
		slog.Time("trial_ends_at", *result.Subscription.TrialEndsAt))
	render.JSON(w, r, response.OKWithData(result))
}
