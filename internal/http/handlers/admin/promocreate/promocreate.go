// Package promocreate реализует HTTP-обработчик создания промоакции.
//
// Handler принимает параметры акции, валидирует их и вызывает бизнес-логику
// создания. Открытый код возвращается в ответе единственный раз: в базе
// хранится только его хэш.
package promocreate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/response"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
	"github.com/magabrotheeeer/entitlement-engine/internal/services/billing"
)

// Request тело запроса создания промоакции. Задается ровно один из
// параметров окна: длительность в днях или фиксированная дата конца.
type Request struct {
	GrantDurationDays     *int       `json:"grant_duration_days,omitempty" validate:"omitempty,gt=0"`
	GrantFixedEndsAt      *time.Time `json:"grant_fixed_ends_at,omitempty"`
	ValidFrom             *time.Time `json:"valid_from,omitempty"`
	ValidTo               *time.Time `json:"valid_to,omitempty"`
	MaxRedemptions        *int       `json:"max_redemptions,omitempty" validate:"omitempty,gt=0"`
	PerUserMaxRedemptions int        `json:"per_user_max_redemptions" validate:"required"`
}

// Handler управляет HTTP-запросами на создание промоакций.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики команд биллинга
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики создания промоакции.
type Service interface {
	CreatePromotion(ctx context.Context, req billing.CreatePromotionRequest) (*models.CreatePromotionResult, error)
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
// @Summary Создать промоакцию
// @Description Создает промоакцию и возвращает открытый код. Код показывается единственный раз.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body Request true "Параметры промоакции"
// @Success 200 {object} map[string]any "Созданная акция и открытый код"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации или некорректное окно гранта"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при создании акции"
// @Security BearerAuth
// @Router /admin/promotions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.promocreate"
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

	adminUID, ok := r.Context().Value(middlewarectx.UserUIDKey).(string)
	if !ok || adminUID == "" {
		log.Error("admin uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	result, err := h.service.CreatePromotion(r.Context(), billing.CreatePromotionRequest{
		GrantDurationDays:     req.GrantDurationDays,
		GrantFixedEndsAt:      req.GrantFixedEndsAt,
		ValidFrom:             req.ValidFrom,
		ValidTo:               req.ValidTo,
		MaxRedemptions:        req.MaxRedemptions,
		PerUserMaxRedemptions: req.PerUserMaxRedemptions,
		CreatedByUserUID:      &adminUID,
	})
	if err != nil {
		if status, resp, ok := response.RenderCommandError(err); ok {
			log.Info("promotion create rejected", slog.String("code", resp.Code))
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}
		log.Error("failed to create promotion", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create promotion"))
		return
	}

	log.Info("succes to create promotion", slog.Int64("id", result.Promotion.ID))
	render.JSON(w, r, response.OKWithData(result))
}
