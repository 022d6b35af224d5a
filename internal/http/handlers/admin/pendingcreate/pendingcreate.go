// Package pendingcreate реализует HTTP-обработчик создания отложенного гранта.
//
// Грант адресуется по email: пользователь может еще не существовать.
// В базе хранится только хэш нормализованного email.
package pendingcreate

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

// Request тело запроса создания отложенного гранта. Задается ровно один из
// параметров окна: длительность в днях или фиксированная дата конца.
type Request struct {
	Email             string     `json:"email" validate:"required,email"`
	GrantDurationDays *int       `json:"grant_duration_days,omitempty" validate:"omitempty,gt=0"`
	GrantFixedEndsAt  *time.Time `json:"grant_fixed_ends_at,omitempty"`
	ClaimValidFrom    *time.Time `json:"claim_valid_from,omitempty"`
	ClaimValidTo      *time.Time `json:"claim_valid_to,omitempty"`
	Reason            string     `json:"reason" validate:"required"`
}

// Handler управляет HTTP-запросами на создание отложенных грантов.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики команд биллинга
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики создания гранта.
type Service interface {
	CreatePendingGrant(ctx context.Context, req billing.CreatePendingGrantRequest) (*models.CreatePendingGrantResult, error)
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
// @Summary Создать отложенный грант
// @Description Создает грант доступа, адресованный по email. Грант будет забран при обращении пользователя.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body Request true "Параметры гранта"
// @Success 200 {object} map[string]any "Созданный грант"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации или некорректное окно гранта"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при создании гранта"
// @Security BearerAuth
// @Router /admin/grants [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.pendingcreate"
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

	result, err := h.service.CreatePendingGrant(r.Context(), billing.CreatePendingGrantRequest{
		Email:             req.Email,
		GrantDurationDays: req.GrantDurationDays,
		GrantFixedEndsAt:  req.GrantFixedEndsAt,
		ClaimValidFrom:    req.ClaimValidFrom,
		ClaimValidTo:      req.ClaimValidTo,
		Reason:            req.Reason,
		CreatedByUserUID:  &adminUID,
	})
	if err != nil {
		if status, resp, ok := response.RenderCommandError(err); ok {
			log.Info("pending grant create rejected", slog.String("code", resp.Code))
			w.WriteHeader(status)
			render.JSON(w, r, resp)
			return
		}
		log.Error("failed to create pending grant", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create pending grant"))
		return
	}

	log.Info("succes to create pending grant", slog.Int64("id", result.Grant.ID))
	render.JSON(w, r, response.OKWithData(result))
}
