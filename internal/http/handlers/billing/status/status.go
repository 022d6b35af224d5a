// Package status реализует HTTP-обработчик чтения Pro-статуса пользователя.
//
// Handler извлекает идентификатор пользователя из контекста запроса,
// запрашивает у сервиса вычисленный статус и возвращает его в JSON-формате.
// Статус никогда не хранится в базе, он выводится при каждом чтении.
package status

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

// Handler управляет HTTP-запросами на чтение Pro-статуса.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис вычисления статуса
}

// Service описывает интерфейс бизнес-логики чтения статуса.
type Service interface {
	GetProStatus(ctx context.Context, userUID string, isInternal bool) (*models.ProStatus, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить Pro-статус пользователя
// @Description Возвращает вычисленный Pro-статус текущего пользователя вместе с данными подписки.
// @Tags Billing
// @Produce  json
// @Success 200 {object} map[string]any "Статус пользователя"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при вычислении статуса"
// @Security BearerAuth
// @Router /entitlement/status [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.status"
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
	isInternal, _ := r.Context().Value(middlewarectx.IsInternalKey).(bool)

	result, err := h.service.GetProStatus(r.Context(), userUID, isInternal)
	if err != nil {
		log.Error("failed to get pro status", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not get pro status"))
		return
	}

	log.Info("succes to get pro status", slog.Bool("is_pro", result.Entitlement.IsPro))
	render.JSON(w, r, response.OKWithData(result))
}
