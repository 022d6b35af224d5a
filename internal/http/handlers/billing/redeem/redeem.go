// Package redeem реализует HTTP-обработчик активации промокода.
//
// Handler принимает JSON-запрос с открытым кодом, валидирует его и вызывает
// бизнес-логику активации. Открытый код нигде не логируется и не сохраняется.
package redeem

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/response"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// Request тело запроса активации промокода.
type Request struct {
	Code string `json:"code" validate:"required"`
}

// Handler управляет HTTP-запросами на активацию промокодов.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики команд биллинга
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики активации промокода.
type Service interface {
	RedeemPromotionForUser(ctx context.Context, userUID, code string) (*models.RedeemResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Активировать промокод
// @Description Активирует промокод для текущего пользователя и продлевает окно доступа.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param request body Request true "Открытый промокод"
// @Success 200 {object} map[string]any "Промокод активирован"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Промокод не найден"
// @Failure 409 {object} response.ErrorResponse "Промокод неактивен или исчерпан"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при активации"
// @Security BearerAuth
// @Router /promotions/redeem [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.redeem"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userUID, ok := r.Context().Value(middlewarectx.UserUIDKey).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	result, err := h.service.RedeemPromotionForUser(r.Context(), userUID, req.Code)
	if err != nil {
		if status, resp, ok := response.RenderCommandError(err); ok {
			log.Info("redeem rejected", slog.String("code", resp.Code))
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}
		log.Error("failed to redeem promotion", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not redeem promotion"))
		return
	}

	log.Info("succes to redeem promotion",
		slog.Bool("already_redeemed", result.AlreadyRedeemed),
		slog.Bool("no_extension", result.NoExtension))
	render.JSON(w, r, response.OKWithData(result))
}
