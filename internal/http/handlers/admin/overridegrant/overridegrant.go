// Package overridegrant реализует HTTP-обработчики выдачи и продления
// ручных оверрайдов доступа администратором.
package overridegrant

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

// Request тело запроса выдачи оверрайда. Задается ровно один из параметров
// окна: длительность в днях или фиксированная дата конца.
type Request struct {
	UserUID           string     `json:"user_uid" validate:"required"`
	GrantDurationDays *int       `json:"grant_duration_days,omitempty" validate:"omitempty,gt=0"`
	GrantFixedEndsAt  *time.Time `json:"grant_fixed_ends_at,omitempty"`
	Reason            string     `json:"reason" validate:"required"`
}

// Handler управляет HTTP-запросами на выдачу и продление оверрайдов.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики команд биллинга
	validate *validator.Validate // Валидатор структуры входящих данных
	extend   bool                // true — продление, false — первичная выдача
}

// Service описывает интерфейс бизнес-логики оверрайдов.
type Service interface {
	GrantAdminOverride(ctx context.Context, req billing.OverrideRequest) (*models.OverrideResult, error)
	ExtendAdminOverride(ctx context.Context, req billing.OverrideRequest) (*models.OverrideResult, error)
}

// NewGrant создает Handler первичной выдачи оверрайда.
func NewGrant(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New(), extend: false}
}

// NewExtend создает Handler продления доступа.
func NewExtend(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New(), extend: true}
}

// ServeHTTP godoc
// @Summary Выдать или продлить оверрайд доступа
// @Description Выдает пользователю ручной грант доступа поверх подписки. Окно складывается с текущим доступом.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body Request true "Параметры оверрайда"
// @Success 200 {object} map[string]any "Созданный оверрайд"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации или некорректное окно гранта"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при выдаче оверрайда"
// @Security BearerAuth
// @Router /admin/overrides [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.overridegrant"
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

	overrideReq := billing.OverrideRequest{
		UserUID:           req.UserUID,
		GrantDurationDays: req.GrantDurationDays,
		GrantFixedEndsAt:  req.GrantFixedEndsAt,
		Reason:            req.Reason,
		GrantedByUserUID:  &adminUID,
	}

	var result *models.OverrideResult
	var err error
	if h.extend {
		result, err = h.service.ExtendAdminOverride(r.Context(), overrideReq)
	} else {
		result, err = h.service.GrantAdminOverride(r.Context(), overrideReq)
	}
	if err != nil {
		if status, resp, ok := response.RenderCommandError(err); ok {
			log.Info("override rejected", slog.String("code", resp.Code))
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}
		log.Error("failed to grant override", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not grant override"))
		return
	}

	log.Info("succes to grant override",
		slog.String("user_uid", req.UserUID),
		slog.Bool("extend", h.extend))
	render.JSON(w, r, response.OKWithData(result))
}
